package main

import (
	"context"
	"fmt"
	"os"

	"github.com/MKhiriev/clinic-keeper/internal/cli"
	"github.com/MKhiriev/clinic-keeper/models"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	info := models.NewBuildInfo(buildVersion, buildDate, buildCommit)
	if err := cli.Execute(context.Background(), info); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
