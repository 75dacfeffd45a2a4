/*
Package davinci is the protocol module for PingOne DaVinci flows.

It starts the flow with an authorization request in pi.flow response mode,
decodes each response into a node, builds the continue request from the
node's collectors and, on success, hands out an oidc.User holding the
authorization code.

	wf, err := orchestrate.New(
		orchestrate.WithModule(orchestrate.CustomHeader, orchestrate.WithPriority(orchestrate.CustomHeaderPriority)),
		orchestrate.WithModule(davinci.Module, orchestrate.Configure(func(c *davinci.Config) {
			c.DiscoveryEndpoint = "https://auth.pingone.com/<env>/as/.well-known/openid-configuration"
			c.ClientID = "<client>"
			c.RedirectURI = "app://callback"
		})),
		orchestrate.WithModule(orchestrate.Cookie, orchestrate.WithPriority(orchestrate.CookiePriority)),
	)

	node := wf.Start(ctx)
	for {
		cont, ok := node.(*orchestrate.ContinueNode)
		if !ok {
			break
		}
		cs := davinci.Collectors(cont)
		// fill in cs
		node = cont.Next(ctx)
	}
*/
package davinci
