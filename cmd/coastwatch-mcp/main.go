package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// windResponse mirrors the coastwatch /api/wind response.
type windResponse struct {
	WindSpeed       string `json:"windSpeed"`
	WindDirection   string `json:"windDirection"`
	LatestTimestamp string `json:"latestTimestamp"`
	WindFrom        string `json:"windFrom"`
}

// errorResponse mirrors the coastwatch error envelope.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
	Status  int    `json:"status"`
	Body    string `json:"body"`
}

func main() {
	apiURL := os.Getenv("COASTWATCH_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:3000"
	}

	s := server.NewMCPServer(
		"coastwatch",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	client := &http.Client{Timeout: 60 * time.Second}

	liveWindTool := mcp.NewTool("get_live_wind",
		mcp.WithDescription("Read the latest wind speed, direction and compass point from the live sensor page. Always fetched fresh; takes several seconds."),
	)
	s.AddTool(liveWindTool, handleLiveWind(client, apiURL))

	tidesTool := mcp.NewTool("get_tides",
		mcp.WithDescription("Get upcoming tidal events (high and low water) for a tide station. Cached for 10 minutes."),
		mcp.WithString("station",
			mcp.Description("Tide station id, e.g. '0065'. Uses the server's default station when omitted."),
		),
	)
	s.AddTool(tidesTool, handleTides(client, apiURL))

	forecastTool := mcp.NewTool("get_weather_forecast",
		mcp.WithDescription("Get the hourly weather forecast (temperature, wind, gusts). Cached for 10 minutes."),
	)
	s.AddTool(forecastTool, handleDocument(client, apiURL, "/api/weatherforecast"))

	wavesTool := mcp.NewTool("get_waves",
		mcp.WithDescription("Get the hourly marine forecast (wave height, direction, period). Cached for 10 minutes."),
	)
	s.AddTool(wavesTool, handleDocument(client, apiURL, "/api/waves"))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiGet sends a GET request to the coastwatch API and returns the status
// and response body.
func apiGet(ctx context.Context, client *http.Client, apiURL, path string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+path, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// errorResult turns a coastwatch error envelope into a tool error.
func errorResult(status int, body []byte) *mcp.CallToolResult {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
		return mcp.NewToolResultError(fmt.Sprintf("HTTP %d: %s", status, string(body)))
	}
	msg := fmt.Sprintf("HTTP %d: %s", status, e.Error)
	switch {
	case e.Details != "":
		msg += ": " + e.Details
	case e.Status != 0:
		msg += fmt.Sprintf(" (upstream HTTP %d) %s", e.Status, e.Body)
	}
	return mcp.NewToolResultError(msg)
}

func handleLiveWind(client *http.Client, apiURL string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status, body, err := apiGet(ctx, client, apiURL, "/api/wind")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if status != http.StatusOK {
			return errorResult(status, body), nil
		}

		var w windResponse
		if err := json.Unmarshal(body, &w); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf(
			"Wind: %s from %s (%s°)\nReading time: %s",
			w.WindSpeed, w.WindFrom, w.WindDirection, w.LatestTimestamp,
		)), nil
	}
}

func handleTides(client *http.Client, apiURL string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := "/api/tides"
		if station := request.GetString("station", ""); station != "" {
			path += "?station=" + url.QueryEscape(station)
		}
		return documentResult(ctx, client, apiURL, path)
	}
}

func handleDocument(client *http.Client, apiURL, path string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return documentResult(ctx, client, apiURL, path)
	}
}

// documentResult fetches a passthrough JSON document and pretty prints it.
func documentResult(ctx context.Context, client *http.Client, apiURL, path string) (*mcp.CallToolResult, error) {
	status, body, err := apiGet(ctx, client, apiURL, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if status != http.StatusOK {
		return errorResult(status, body), nil
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		// Fall back to raw JSON.
		pretty.Write(body)
	}
	return mcp.NewToolResultText(pretty.String()), nil
}
