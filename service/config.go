package service

import "github.com/kardianos/service"

const (
	ServiceName        = "purchase-export"
	ServiceDisplayName = "Purchase Export Service"
	ServiceDescription = "Exports App Store purchase history to CSV over gRPC and a local WebSocket bridge"
)

// NewServiceConfig creates the OS service definition. args are passed to
// the executable when the service manager starts it.
func NewServiceConfig(args []string) *service.Config {
	return &service.Config{
		Name:        ServiceName,
		DisplayName: ServiceDisplayName,
		Description: ServiceDescription,
		Arguments:   args,
		Option: service.KeyValue{
			// Windows
			"StartType": "automatic",
			// systemd / launchd
			"Restart":   "on-failure",
			"KeepAlive": true,
		},
	}
}
