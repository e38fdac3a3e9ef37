package common

// AuthHeaderName is the HTTP header carrying the session credential.
const AuthHeaderName = "Authorization"

// BearerPrefix precedes the token inside AuthHeaderName.
const BearerPrefix = "Bearer "
