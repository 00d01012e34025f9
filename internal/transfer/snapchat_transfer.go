package transfer

type SnapTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

type SnapUserInfo struct {
	Data struct {
		User struct {
			ExternalID     string `json:"external_id"`
			DisplayName    string `json:"display_name"`
			Username       string `json:"username"`
			ProfilePicture string `json:"bitmoji_avatar_url"`
		} `json:"me"`
	} `json:"data"`
}

type SnapMediaResponse struct {
	RequestStatus string `json:"request_status"`
	Media         struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Type     string `json:"type"`
		MediaURL string `json:"download_link"`
	} `json:"media"`
}

type SnapStoryRequest struct {
	MediaID string `json:"media_id"`
	Caption string `json:"caption,omitempty"`
}

type SnapStoryResponse struct {
	RequestStatus string `json:"request_status"`
	Story         struct {
		ID string `json:"id"`
	} `json:"story"`
}

type SnapErrorResponse struct {
	RequestStatus string `json:"request_status"`
	DebugMessage  string `json:"debug_message"`
	DisplayReason string `json:"display_reason"`
	Permanent     bool   `json:"permanent"`
}
