package main

import (
	"github.com/praetorian-inc/auditgraph/cmd"
)

func main() {
	cmd.Execute()
}
