package constant

const (
	// BearerAuthorizationRealm is the prefix of the `Authorization` header value carrying an upstream credential.
	BearerAuthorizationRealm = "Bearer"

	// UpstreamTokenHeader is an alternative to the Authorization header, for clients whose
	// Authorization header is taken by a proxy in front of this service.
	UpstreamTokenHeader = "X-Bangumi-Token"
)
