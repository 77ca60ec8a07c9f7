package domain

// Service is one row of services.csv, keyed by header name
type Service map[string]string

// ServiceSummary counts services sharing a service name and CMS type
type ServiceSummary struct {
	ServiceName string `json:"service_name"`
	CMSType     string `json:"cms_type"`
	Count       int    `json:"count"`
}
