package tradedata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

// Client talks to the external trade statistics provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(baseURL, apiKey string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (c *Client) GetTradeStatistics(countryCode string) (*TradeStatistics, error) {
	var response TradeStatistics
	endpoint := fmt.Sprintf("/statistics/%s", url.PathEscape(countryCode))
	err := c.makeRequest("GET", endpoint, nil, &response)
	if err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *Client) GetMarketData(req MarketDataRequest) (*MarketData, error) {
	var response MarketData
	err := c.makeRequest("POST", "/market-data", req, &response)
	if err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *Client) makeRequest(method, endpoint string, payload interface{}, result interface{}) error {
	requestURL := c.baseURL + endpoint

	var body io.Reader
	var contentLength int

	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
		contentLength = len(jsonData)

		c.logger.WithFields(logrus.Fields{
			"method":       method,
			"url":          requestURL,
			"payload_size": contentLength,
		}).Debug("Request payload info")
	}

	req, err := http.NewRequest(method, requestURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	c.logger.WithFields(logrus.Fields{
		"method":   method,
		"url":      requestURL,
		"has_body": payload != nil,
	}).Debug("Making trade data API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"status_code":   resp.StatusCode,
		"method":        method,
		"url":           requestURL,
		"response_size": len(responseBody),
	}).Debug("Trade data API response received")

	// Only log response body for small responses or errors
	if len(responseBody) < 500 || resp.StatusCode >= 400 {
		c.logger.WithFields(logrus.Fields{
			"status_code":   resp.StatusCode,
			"response_body": string(responseBody),
		}).Debug("Response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(responseBody))
	}

	if result != nil && len(responseBody) > 0 {
		if err := json.Unmarshal(responseBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}
