// Package fixture declares named, scoped, optionally parametrized fixtures.
//
// A fixture is a shared setup resource requested by tests by name. Each
// definition carries:
//
//   - a Scope: function, class, module or process
//   - a Provider that acquires the value and optionally hands back a
//     teardown handle (two-phase acquisition)
//   - optional Params; each param multiplies the executions of every test
//     that uses the fixture
//   - a Visibility: global, module or class; narrower declarations shadow
//     wider ones
//
// # Providers
//
// Suspension-style providers acquire, hand over the value, and release later:
//
//	fixture.Yield(func(req *fixture.Request) (any, fixture.Teardown, error) {
//	    drv, err := launcher.Launch(req.Context())
//	    if err != nil {
//	        return nil, nil, err
//	    }
//	    return drv, drv.Quit, nil
//	})
//
// Return-style providers (fixture.Value) never declare a teardown. If one
// needs cleanup it must call Request.AddFinalizer; statements after the
// return are dead code and are never executed by the resolver.
//
// # Validation
//
// Registry.Validate reports configuration errors before any test runs:
// missing requirements, requirements that narrow the scope, and dependency
// cycles (found with Tarjan's SCC algorithm).
package fixture
