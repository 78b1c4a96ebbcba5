package game_api_client

const (
	// Base URL
	DefaultBaseURL = "http://localhost:8000/api"

	// API Endpoints, formatted with the escaped game id
	StateEndpoint             = "/game/%s/state"
	ActionEndpoint            = "/game/%s/action"
	InteractionStartEndpoint  = "/game/%s/interaction/start"
	InteractionCancelEndpoint = "/game/%s/interaction/cancel"

	// Headers
	ContentTypeHeader = "Content-Type"
	AcceptHeader      = "Accept"
	JsonContentType   = "application/json"
)
