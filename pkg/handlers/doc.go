// Package handlers holds the application's server event handlers, session
// writers and setters. Register installs all of them:
//
//	regs := synchronizer.NewRegistries()
//	handlers.Register(regs)
//	if err := regs.Verify(); err != nil {
//		return err
//	}
//
// Event handlers apply server state without notifying writers, so a
// server push is never echoed back as a mutation.
package handlers
