package group

// SenderInfo names the character producing a message.
type SenderInfo struct {
	Name string
	Role string
}

func (s SenderInfo) String() string {
	return s.Name + " - " + s.Role
}

// Handler receives a run's progress. Calls arrive from the goroutine
// executing the run, in order.
type Handler interface {
	OnNewMessage(sender SenderInfo)
	OnNewToken(token string)
	OnMessageEnd()
	OnNewFile(sender SenderInfo, fileType, path string)
	OnCostUpdated(cost float64)
	OnWorkspaceGenerated(path string)
}
