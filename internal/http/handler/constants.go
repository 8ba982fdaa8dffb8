package handler

const (
	jsonKeyError   = "error"
	jsonKeyMessage = "message"

	paramID = "id"

	queryVariant = "variant"

	msgContentTypeJSONRequired = "Content-Type must be application/json"
	msgInvalidRequestBody      = "invalid request body"
	msgInvalidAssetID          = "invalid asset id"
	msgInvalidJobID            = "invalid job id"
	msgInvalidUserID           = "invalid user id in visibility list"
	msgVariantRequired         = "variant query parameter is required"
)
