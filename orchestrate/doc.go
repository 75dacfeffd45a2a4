// Package orchestrate is the node-based workflow engine that drives a
// server-directed authentication flow.
//
// A Workflow is assembled from modules. Each module contributes handlers to
// the lifecycle stages, and the Workflow runs them in module order:
//
//	initialize  once, lazily, before the first request
//	start       builds the first Request
//	next        adjusts the Request built from a ContinueNode
//	response    observes the raw Response (e.g. cookies)
//	transform   decodes the Response into a Node; at most one module owns it
//	node        adjusts the decoded Node
//	success     wraps the Session of a SuccessNode
//	signOff     builds the sign-off Request
//
// Module order is priority first and registration order second. See
// ModuleRegistry for the override, append and ignore registration modes.
//
// Example usage:
//
//	protocol := orchestrate.NewModule("protocol", newConfig, func(s *orchestrate.Setup[Config]) {
//		s.Start(func(ctx context.Context, fc *orchestrate.FlowContext, req *orchestrate.Request) (*orchestrate.Request, error) {
//			return req.SetURL(s.Config().StartURL), nil
//		})
//		s.Transform(decode)
//	})
//
//	wf, err := orchestrate.New(
//		orchestrate.WithModule(orchestrate.CustomHeader, orchestrate.WithPriority(orchestrate.CustomHeaderPriority)),
//		orchestrate.WithModule(protocol),
//		orchestrate.WithModule(orchestrate.Cookie, orchestrate.WithPriority(orchestrate.CookiePriority)),
//	)
//
//	node := wf.Start(ctx)
//	for {
//		c, ok := node.(*orchestrate.ContinueNode)
//		if !ok {
//			break
//		}
//		// collect input from c.Actions
//		node = c.Next(ctx)
//	}
//
// Start and Next never return errors. Transport failures and handler
// errors come back as a *FailureNode; server reported problems as an
// *ErrorNode.
package orchestrate
