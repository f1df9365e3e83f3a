package main

import (
	"os"

	"github.com/spf13/cobra"

	"twin/internal/httpclient"
)

type clientOptions struct {
	url    string
	apiKey string
}

func (o *clientOptions) register(cmd *cobra.Command) {
	url := os.Getenv("TWIN_URL")
	if url == "" {
		url = "http://localhost:8000"
	}
	apiKey := os.Getenv("TWIN_SERVER_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("APP_API_KEY")
	}
	cmd.Flags().StringVar(&o.url, "url", url, "server base URL")
	cmd.Flags().StringVar(&o.apiKey, "api-key", apiKey, "value for the X-API-Key header")
}

func (o *clientOptions) client() (*httpclient.Client, error) {
	return httpclient.New(o.url, httpclient.WithAPIKey(o.apiKey))
}
