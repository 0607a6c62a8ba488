package main

import "github.com/rudransh-shrivastava/pitshare/internal/client/cmd"

func main() {
	cmd.Execute()
}
