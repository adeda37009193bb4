package constants

type InstanceStatus string

const (
	InstanceStatusUnloaded InstanceStatus = "unloaded"
	InstanceStatusLoading  InstanceStatus = "loading"
	InstanceStatusReady    InstanceStatus = "ready"
	InstanceStatusFailed   InstanceStatus = "failed"
)

type HostStatus string

const (
	HostStatusUnknown  HostStatus = "unknown"
	HostStatusStarting HostStatus = "starting"
	HostStatusServing  HostStatus = "serving"
	HostStatusDegraded HostStatus = "degraded"
)
