package signalr

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type availableTransport struct {
	Transport       string   `json:"transport"`
	TransferFormats []string `json:"transferFormats"`
}

// negotiationResponse is the parsed reply of one negotiate POST.
type negotiationResponse struct {
	ConnectionID        string
	ConnectionToken     string
	AvailableTransports []availableTransport
	// URL and AccessToken are set when the response is a redirect.
	URL         string
	AccessToken string
	// Error is the server-reported negotiate failure, verbatim.
	Error string
}

// supportsWebsockets reports whether the server offered the WebSockets
// transport, compared case-insensitively.
func (r *negotiationResponse) supportsWebsockets() bool {
	for _, t := range r.AvailableTransports {
		if strings.EqualFold(t.Transport, "WebSockets") {
			return true
		}
	}
	return false
}

// sendNegotiate performs one negotiate POST against baseURL and parses the
// response. Redirect handling and the redirect limit live in the connection,
// which recurses with the new URL.
func sendNegotiate(ctx context.Context, client HTTPClient, baseURL string, config ClientConfig, callback func(negotiationResponse, error)) {
	negotiateURL, err := buildNegotiateURL(baseURL)
	if err != nil {
		callback(negotiationResponse{}, err)
		return
	}

	request := HTTPRequest{
		Method:  HTTPPost,
		Headers: config.HTTPHeaders(),
	}

	client.Send(ctx, negotiateURL, request, func(response HTTPResponse, err error) {
		if err != nil {
			callback(negotiationResponse{}, err)
			return
		}
		if ctx.Err() != nil {
			callback(negotiationResponse{}, &CanceledError{})
			return
		}
		if response.StatusCode != 200 {
			callback(negotiationResponse{}, &NegotiationError{
				Message: fmt.Sprintf("negotiate failed with status code %d", response.StatusCode)})
			return
		}
		callback(parseNegotiateResponse(response.Body))
	})
}

func parseNegotiateResponse(body string) (negotiationResponse, error) {
	var raw struct {
		Error               *string              `json:"error"`
		NegotiateVersion    int                  `json:"negotiateVersion"`
		ConnectionID        string               `json:"connectionId"`
		ConnectionToken     string               `json:"connectionToken"`
		AvailableTransports []availableTransport `json:"availableTransports"`
		URL                 *string              `json:"url"`
		AccessToken         string               `json:"accessToken"`
		ProtocolVersion     *string              `json:"ProtocolVersion"`
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return negotiationResponse{}, &NegotiationError{Message: "error occurred when parsing response: " + err.Error()}
	}

	if raw.Error != nil {
		return negotiationResponse{Error: *raw.Error}, nil
	}
	if raw.ProtocolVersion != nil {
		return negotiationResponse{}, &NegotiationError{
			Message: "Detected a connection attempt to an ASP.NET SignalR Server. This client only supports connecting to an ASP.NET Core SignalR Server. See https://aka.ms/signalr-core-differences for details."}
	}

	response := negotiationResponse{
		ConnectionID:        raw.ConnectionID,
		ConnectionToken:     raw.ConnectionToken,
		AvailableTransports: raw.AvailableTransports,
		AccessToken:         raw.AccessToken,
	}
	if raw.URL != nil {
		response.URL = *raw.URL
	}
	if raw.NegotiateVersion <= 0 {
		response.ConnectionToken = response.ConnectionID
	}
	return response, nil
}
