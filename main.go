package main

import "github.com/ValentinKolb/dCfg/cmd"

func main() {
	cmd.Execute()
}
