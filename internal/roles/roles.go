// Package roles answers questions according to who is asked.
//
// A Person carries a Role tag. Answers are looked up in a (role, question)
// table; a question the role has no answer for falls through to the Human
// role, whose only answer is the default one.
package roles

import (
	"fmt"
	"sort"
	"strings"
)

// Role is the category a person answers as.
type Role string

const (
	Human    Role = "human"
	Student  Role = "student"
	Mentor   Role = "mentor"
	Curator  Role = "curator"
	Reviewer Role = "reviewer"
)

// Roles lists every role.
var Roles = []Role{Human, Student, Mentor, Curator, Reviewer}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if string(r) == strings.ToLower(s) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q (want one of %s)", s, joinRoles())
}

func joinRoles() string {
	names := make([]string, len(Roles))
	for i, r := range Roles {
		names[i] = string(r)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// Questions the table knows answers to.
const (
	QuestionJob     = "как устроиться работать питонистом?"
	QuestionSad     = "мне грустненько, что делать?"
	QuestionProject = "что не так с моим проектом?"
)

// DefaultAnswer is the Human answer to everything.
const DefaultAnswer = "Очень интересный вопрос! Не знаю."

// answers maps a role to the questions it answers itself.
var answers = map[Role]map[string]string{
	Mentor: {
		QuestionJob: "Сейчас расскажу.",
		QuestionSad: "Отдохни и возвращайся с вопросами по теории.",
	},
	Curator: {
		QuestionSad: "Держись, всё получится. Хочешь видео с котиками?",
	},
	Reviewer: {
		QuestionProject: "О, вопрос про проект, это я люблю.",
	},
}

// Answer returns role's answer to question, falling back to the Human
// default.
func Answer(role Role, question string) string {
	if a, ok := answers[role][question]; ok {
		return a
	}
	return DefaultAnswer
}

// Person is someone who can ask and answer.
type Person struct {
	Name string
	Role Role
}

// New creates a person.
func New(name string, role Role) Person {
	return Person{Name: name, Role: role}
}

// Answer returns the person's answer to question.
func (p Person) Answer(question string) string {
	return Answer(p.Role, question)
}

// Ask puts a question to someone.
func (p Person) Ask(someone Person, question string) Exchange {
	return Exchange{Asker: p, Answerer: someone, Question: question, Answer: someone.Answer(question)}
}

func (p Person) String() string {
	return p.Name
}

// Exchange is one question and its answer.
type Exchange struct {
	Asker    Person
	Answerer Person
	Question string
	Answer   string
}

func (e Exchange) String() string {
	return fmt.Sprintf("%s, %s\n%s", e.Answerer.Name, e.Question, e.Answer)
}
