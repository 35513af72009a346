package client

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dghubble/sling"
	"github.com/umbracle/flight-relay/internal/server"
	"github.com/umbracle/flight-relay/internal/server/structs"
)

// Client is the http client of the relay query surface
type Client struct {
	base *sling.Sling
}

type apiError struct {
	Err string `json:"error"`
}

func NewClient(addr string) *Client {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	if !strings.HasSuffix(addr, "/") {
		addr += "/"
	}
	return &Client{
		base: sling.New().Base(addr).Set("Accept", "application/json"),
	}
}

func (c *Client) get(path string, obj interface{}) error {
	failure := &apiError{}
	resp, err := c.base.New().Get(path).Receive(obj, failure)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		if failure.Err != "" {
			return fmt.Errorf("%s: %s", resp.Status, failure.Err)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}

func (c *Client) Airlines() ([]*structs.Airline, error) {
	var res []*structs.Airline
	if err := c.get("airlines", &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) Flights() ([]*structs.Flight, error) {
	var res []*structs.Flight
	if err := c.get("flights", &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) FlightStatuses() ([]*structs.FlightStatus, error) {
	var res []*structs.FlightStatus
	if err := c.get("flightsStatus", &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) Oracles() ([]*structs.Oracle, error) {
	var res []*structs.Oracle
	if err := c.get("oracles", &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) Requests() ([]*structs.FanoutReport, error) {
	var res []*structs.FanoutReport
	if err := c.get("requests", &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) ContractBalance() (*structs.ContractBalance, error) {
	res := &structs.ContractBalance{}
	if err := c.get("contractBalance", res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) Health() (*server.Health, error) {
	res := &server.Health{}
	if err := c.get("health", res); err != nil {
		return nil, err
	}
	return res, nil
}
