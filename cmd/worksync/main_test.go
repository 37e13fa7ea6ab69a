package main

import (
	"os"
	"testing"
)

func TestMain_Help(t *testing.T) {
	args := os.Args
	t.Cleanup(func() { os.Args = args })

	os.Args = []string{"worksync", "--help"}
	main()
}

func TestMain_Version(t *testing.T) {
	args := os.Args
	t.Cleanup(func() { os.Args = args })

	os.Args = []string{"worksync", "--version"}
	main()
}
