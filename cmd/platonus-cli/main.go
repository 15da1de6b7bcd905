package main

import (
	"platonus-notifier/cmd/platonus-cli/commands"
	"platonus-notifier/internal/components/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
