package main

import "blogdesk/cmd"

func main() {
	cmd.Execute()
}
