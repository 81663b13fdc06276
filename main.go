package main

import "github.com/furahitechstudio/furahitechpay/cmd"

func main() {
	cmd.Execute()
}
