package main

import "os"

func main() {
	rootCmd, c := newRootCmd()
	err := rootCmd.Execute()
	c.teardown()
	if err != nil {
		os.Exit(1)
	}
}
