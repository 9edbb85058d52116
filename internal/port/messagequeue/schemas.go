package messagequeue

// TenantInvalidatePayload is the schema for hotelchat.tenants.invalidate messages.
type TenantInvalidatePayload struct {
	Tenant string `json:"tenant"`
	Origin string `json:"origin"` // Instance id of the publisher; receivers skip their own messages
}
