package main

import (
	"github.com/stakewatch/vault-rewards/cmd"
)

func main() {
	cmd.Execute()
}
