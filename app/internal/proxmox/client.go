// Package proxmox talks to a Proxmox VE management API and turns its node,
// VM and container inventory into check records.
package proxmox

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"infrastatus/app/internal/models"
	"infrastatus/app/internal/units"
)

const maxErrorBody = 512

// Session is the ticket pair issued at login. It is never refreshed; a new
// Client is built for every cycle.
type Session struct {
	Ticket    string
	CSRFToken string
	Username  string
	IssuedAt  time.Time
}

// Client is an authenticated Proxmox API client.
type Client struct {
	baseURL string
	http    *http.Client
	session Session
}

// NewClient authenticates against the ticket endpoint and returns a client
// bound to that session. Any failure is an *AuthenticationError.
func NewClient(ctx context.Context, cfg models.HypervisorConfig) (*Client, error) {
	port := cfg.Port
	if port == 0 {
		port = 8006
	}
	realm := cfg.Realm
	if realm == "" {
		realm = "pam"
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: !cfg.VerifyTLS}

	c := &Client{
		baseURL: "https://" + net.JoinHostPort(cfg.Host, strconv.Itoa(port)) + "/api2/json",
		http:    &http.Client{Timeout: cfg.Timeout(), Transport: tr},
	}

	user := cfg.Username + "@" + realm
	if err := c.authenticate(ctx, user, cfg.Password); err != nil {
		return nil, &AuthenticationError{Username: user, Err: err}
	}
	return c, nil
}

// Session returns the ticket pair in use.
func (c *Client) Session() Session {
	return c.session
}

func (c *Client) authenticate(ctx context.Context, user, password string) error {
	form := url.Values{}
	form.Set("username", user)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/access/ticket", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out envelope[*ticketData]
	if err := c.do(req, "/access/ticket", &out); err != nil {
		return err
	}
	if out.Data == nil || out.Data.Ticket == "" {
		return errors.New("response carried no ticket")
	}

	c.session = Session{
		Ticket:    out.Data.Ticket,
		CSRFToken: out.Data.CSRFToken,
		Username:  user,
		IssuedAt:  time.Now().UTC(),
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.AddCookie(&http.Cookie{Name: "PVEAuthCookie", Value: c.session.Ticket})
	req.Header.Set("CSRFPreventionToken", c.session.CSRFToken)
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &UpstreamAPIError{Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Nodes lists the cluster members.
func (c *Client) Nodes(ctx context.Context) ([]Node, error) {
	var out envelope[[]nodeEntry]
	if err := c.getJSON(ctx, "/nodes", &out); err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(out.Data))
	for _, n := range out.Data {
		nodes = append(nodes, Node{Name: n.Node, Status: n.Status})
	}
	return nodes, nil
}

// NodeStatus fetches and derives the metrics of one node.
func (c *Client) NodeStatus(ctx context.Context, node string) (NodeMetrics, error) {
	var out envelope[nodeStatusData]
	if err := c.getJSON(ctx, "/nodes/"+url.PathEscape(node)+"/status", &out); err != nil {
		return NodeMetrics{}, err
	}
	d := out.Data
	return NodeMetrics{
		CPUPercent:    units.Round(asFloat(d.CPU)*100, 2),
		MemoryPercent: units.Percent(asFloat(d.Memory.Used), asFloat(d.Memory.Total), 2),
		DiskPercent:   units.Percent(asFloat(d.RootFS.Used), asFloat(d.RootFS.Total), 2),
		UptimeSeconds: int64(asFloat(d.Uptime)),
		LoadAverage:   asFloats(d.LoadAvg),
	}, nil
}

// Guests lists the VMs ("qemu") or containers ("lxc") of a node.
func (c *Client) Guests(ctx context.Context, node, guestType string) ([]Guest, error) {
	var out envelope[[]guestEntry]
	if err := c.getJSON(ctx, "/nodes/"+url.PathEscape(node)+"/"+guestType, &out); err != nil {
		return nil, err
	}
	guests := make([]Guest, 0, len(out.Data))
	for _, g := range out.Data {
		guests = append(guests, Guest{VMID: asInt(g.VMID), Name: g.Name, Status: g.Status})
	}
	return guests, nil
}

// GuestStatus fetches the current state of one guest. A QEMU guest that is
// running with a paused QMP state is reported as paused.
func (c *Client) GuestStatus(ctx context.Context, node, guestType string, vmid int) (GuestState, error) {
	path := fmt.Sprintf("/nodes/%s/%s/%d/status/current", url.PathEscape(node), guestType, vmid)
	var out envelope[guestStatusData]
	if err := c.getJSON(ctx, path, &out); err != nil {
		return GuestState{}, err
	}
	d := out.Data
	state := d.Status
	if state == "running" && d.QMPStatus == "paused" {
		state = "paused"
	}
	return GuestState{
		Status:        state,
		CPUPercent:    units.Round(asFloat(d.CPU)*100, 2),
		MemoryPercent: units.Percent(asFloat(d.Mem), asFloat(d.MaxMem), 2),
	}, nil
}
