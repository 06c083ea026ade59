package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// Registered error codes.
const (
	CodeRouteNotFound = "E100"
	CodeEntryLoading  = "E101"
	CodeNoEntry       = "E102"

	CodeEventNotRegistered  = "E110"
	CodeWriterNotRegistered = "E111"
	CodeSetterNotRegistered = "E112"

	CodeQueryFailed    = "E120"
	CodeMutationFailed = "E121"

	CodeStreamConnect = "E130"
	CodeStreamPayload = "E131"

	CodeConfigParse   = "E140"
	CodeConfigMissing = "E141"
	CodeConfigInvalid = "E142"
)

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Routing Errors (E100-E109)
	// ============================================

	CodeRouteNotFound: {
		Category: CategoryRouting,
		Message:  "No route matches path",
		Detail:   "None of the configured route patterns matched the location's pathname after the proxy prefix was removed.",
	},
	CodeEntryLoading: {
		Category: CategoryRouting,
		Message:  "Entry is loading",
		Detail:   "The requested navigation entry exists but its query has not resolved yet.",
	},
	CodeNoEntry: {
		Category: CategoryRouting,
		Message:  "No entry loaded",
		Detail:   "The router has not been loaded. Call Load before reading entries.",
	},

	// ============================================
	// Dispatch Errors (E110-E119)
	// ============================================

	CodeEventNotRegistered: {
		Category: CategoryDispatch,
		Message:  "Event handler not registered",
		Detail:   "The server emitted an event that has no registered handler. Every event the server can emit must be registered.",
	},
	CodeWriterNotRegistered: {
		Category: CategoryDispatch,
		Message:  "Writer not registered",
		Detail:   "A session field was written locally but no writer is registered to forward it to the server.",
	},
	CodeSetterNotRegistered: {
		Category: CategoryDispatch,
		Message:  "Setter not registered",
		Detail:   "A session value was set locally but no setter is registered for it.",
	},

	// ============================================
	// Query Errors (E120-E129)
	// ============================================

	CodeQueryFailed: {
		Category: CategoryQuery,
		Message:  "Query failed",
		Detail:   "The data fetch for a navigation entry failed. The previous entry stays current.",
	},
	CodeMutationFailed: {
		Category: CategoryQuery,
		Message:  "Mutation failed",
		Detail:   "The server rejected or could not process a mutation.",
	},

	// ============================================
	// Stream Errors (E130-E139)
	// ============================================

	CodeStreamConnect: {
		Category: CategoryStream,
		Message:  "Event stream connection failed",
		Detail:   "Unable to open the server-push event connection to the session server.",
	},
	CodeStreamPayload: {
		Category: CategoryStream,
		Message:  "Invalid event payload",
		Detail:   "A server event could not be decoded.",
	},

	// ============================================
	// Config Errors (E140-E149)
	// ============================================

	CodeConfigParse: {
		Category: CategoryConfig,
		Message:  "Failed to read configuration",
		Detail:   "appsync.json could not be read or parsed.",
	},
	CodeConfigMissing: {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No appsync.json was found.",
	},
	CodeConfigInvalid: {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "A configuration value is out of range.",
	},
}

// GetAllCodes returns all registered error codes in order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
