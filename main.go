package main

import "github.com/kvmkrao/hdf5/cmd"

func main() {
	cmd.Execute()
}
