package eld

// VendorEvent is a single duty-status event from the vendor feed.
type VendorEvent struct {
	ID        int64  `json:"id"`
	DriverRef string `json:"driverRef"`
	Code      int    `json:"code"`
	Timestamp string `json:"timestamp"`
	Location  string `json:"location"`
	Odometer  string `json:"odometer"`
}

// ApiResponse models the top-level structure of the vendor API's response.
type ApiResponse struct {
	Code int `json:"code"`
	Data struct {
		Page     int           `json:"page"`
		PageSize int           `json:"pageSize"`
		Total    int           `json:"total"`
		Items    []VendorEvent `json:"items"`
	} `json:"data"`
}
