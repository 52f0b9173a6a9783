package main

import (
	"os"

	"github.com/MeKo-Tech/qrscan/cmd/qrscan/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
