package davinci

import (
	"github.com/pingidentity/ping-go/orchestrate"
)

// nextRequest posts the collected values to the node's next link
func nextRequest(req *orchestrate.Request, current *orchestrate.ContinueNode) (*orchestrate.Request, error) {
	href := NextHref(current)
	if href == "" {
		return nil, ErrNoNextLink
	}

	cs := Collectors(current)
	input := current.Input

	req.SetURL(href).
		Header("Accept", "application/json").
		Body(map[string]any{
			"id":        stringOf(input, "id"),
			"eventName": "continue",
			"parameters": map[string]any{
				"eventType": cs.EventType(),
				"data":      cs.AsJSON(),
			},
		})

	if id := stringOf(input, "interactionId"); id != "" {
		req.Header("interactionId", id)
	}
	if token := stringOf(input, "interactionToken"); token != "" {
		req.Header("interactionToken", token)
	}
	return req, nil
}

// NextHref returns the _links.next.href of a continue node
func NextHref(node *orchestrate.ContinueNode) string {
	return stringOf(mapOf(mapOf(node.Input, "_links"), "next"), "href")
}

// Name returns the form name of a continue node
func Name(node *orchestrate.ContinueNode) string {
	return stringOf(mapOf(node.Input, "form"), "name")
}

// Description returns the form description of a continue node
func Description(node *orchestrate.ContinueNode) string {
	return stringOf(mapOf(node.Input, "form"), "description")
}
