package game_api_client

import (
	"time"

	"github.com/mcdev12/roulette-tablet/go/clients"
)

type GameApiClient struct {
	*clients.BaseClient
}

func NewGameApiClient(baseURL string, timeout time.Duration) *GameApiClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := &GameApiClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetHeader(ContentTypeHeader, JsonContentType)
	client.SetHeader(AcceptHeader, JsonContentType)
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return client
}
