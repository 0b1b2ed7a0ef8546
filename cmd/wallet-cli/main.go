package main

import "wallet-psbt/cmd/wallet-cli/cmd"

func main() {
	cmd.Execute()
}
