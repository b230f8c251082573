package domain

// AuthResult is returned by account creation and sign-in.
type AuthResult struct {
	StatusCode int    `json:"status_code"`
	Token      string `json:"token"`
}

// MessageResult is returned by operations that only report an outcome.
type MessageResult struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

// UserPage is one window of the user listing. PrevPage and NextPage are nil
// at the edges.
type UserPage struct {
	PrevPage *int    `json:"prev_page"`
	Page     int     `json:"page"`
	NextPage *int    `json:"next_page"`
	Users    []*User `json:"users"`
}

// CountedUsers is a page of users together with the full match count.
type CountedUsers struct {
	Data       []*User `json:"data"`
	Page       int     `json:"page"`
	TotalPages int     `json:"total_pages"`
	TotalUsers int     `json:"total_users"`
}
