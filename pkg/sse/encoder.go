package sse

import "fmt"

// Encode renders an SSE frame. When event is empty, only the data line is
// emitted.
func Encode(event, data string) string {
	if event == "" {
		return fmt.Sprintf("data: %s\n\n", data)
	}
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)
}

// Done renders the terminal "[DONE]" data frame shared by all client
// dialects that use one.
func Done() string {
	return Encode("", "[DONE]")
}
