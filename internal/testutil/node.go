package testutil

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/hashicorp/go-hclog"
)

type nodeOpts struct {
	Repository string
	Tag        string
	Cmd        []string
	Retry      func(n *node) error
	Name       string
	Logger     hclog.Logger
	Output     []io.Writer
	Labels     map[string]string
}

type node struct {
	cli     *client.Client
	id      string
	opts    *nodeOpts
	ip      string
	waitCh  chan struct{}
	exitErr error
}

type nodeOption func(*nodeOpts)

func WithContainer(repository, tag string) nodeOption {
	return func(n *nodeOpts) {
		n.Repository = repository
		n.Tag = tag
	}
}

func WithCmd(cmd []string) nodeOption {
	return func(n *nodeOpts) {
		n.Cmd = cmd
	}
}

func WithName(name string) nodeOption {
	return func(n *nodeOpts) {
		n.Name = name
	}
}

func WithRetry(retry func(n *node) error) nodeOption {
	return func(n *nodeOpts) {
		n.Retry = retry
	}
}

func WithOutput(output io.Writer) nodeOption {
	return func(n *nodeOpts) {
		n.Output = append(n.Output, output)
	}
}

func WithLabels(m map[string]string) nodeOption {
	return func(n *nodeOpts) {
		for k, v := range m {
			n.Labels[k] = v
		}
	}
}

func newNode(opts ...nodeOption) (*node, error) {
	nOpts := &nodeOpts{
		Cmd:    []string{},
		Logger: hclog.L(),
		Output: []io.Writer{},
		Labels: map[string]string{},
	}
	for _, opt := range opts {
		opt(nOpts)
	}
	if nOpts.Name != "" {
		nOpts.Labels["name"] = nOpts.Name
	}

	ctx := context.Background()

	cli, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		return nil, fmt.Errorf("could not connect to docker: %s", err)
	}

	imageName := nOpts.Repository + ":" + nOpts.Tag

	// pull image if it does not exists
	_, _, err = cli.ImageInspectWithRaw(ctx, imageName)
	if err != nil {
		reader, err := cli.ImagePull(ctx, imageName, types.ImagePullOptions{})
		if err != nil {
			return nil, err
		}
		_, err = io.Copy(nOpts.Logger.StandardWriter(&hclog.StandardLoggerOptions{}), reader)
		if err != nil {
			return nil, err
		}
	}

	config := &container.Config{
		Image:  imageName,
		Cmd:    strslice.StrSlice(nOpts.Cmd),
		Labels: nOpts.Labels,
	}
	hostConfig := &container.HostConfig{}

	body, err := cli.ContainerCreate(ctx, config, hostConfig, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return nil, fmt.Errorf("could not create container: %v", err)
	}

	n := &node{
		cli:    cli,
		id:     body.ID,
		opts:   nOpts,
		waitCh: make(chan struct{}),
	}

	if err := cli.ContainerStart(ctx, n.id, types.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("could not start container: %v", err)
	}

	go n.run()

	containerData, err := cli.ContainerInspect(ctx, n.id)
	if err != nil {
		return nil, err
	}
	n.ip = containerData.NetworkSettings.IPAddress

	if len(nOpts.Output) != 0 {
		go func() {
			if err := n.trackOutput(); err != nil {
				n.opts.Logger.Error("failed to log container", "id", n.id, "err", err)
			}
		}()
	}

	if nOpts.Retry != nil {
		if err := n.retryFn(func() error {
			return nOpts.Retry(n)
		}); err != nil {
			n.Stop()
			return nil, err
		}
	}
	return n, nil
}

func (n *node) run() {
	resCh, errCh := n.cli.ContainerWait(context.Background(), n.id, container.WaitConditionNotRunning)

	select {
	case res := <-resCh:
		if res.Error != nil {
			n.exitErr = fmt.Errorf(res.Error.Message)
		}
	case err := <-errCh:
		n.exitErr = err
	}
	close(n.waitCh)
}

func (n *node) IP() string {
	return n.ip
}

func (n *node) Stop() {
	if err := n.cli.ContainerStop(context.Background(), n.id, nil); err != nil {
		n.opts.Logger.Error("failed to stop container", "id", n.id, "err", err)
	}
}

func (n *node) trackOutput() error {
	writer := io.MultiWriter(n.opts.Output...)

	opts := types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	}
	out, err := n.cli.ContainerLogs(context.Background(), n.id, opts)
	if err != nil {
		return err
	}
	_, err = io.Copy(writer, out)
	return err
}

func (n *node) retryFn(handler func() error) error {
	timeoutT := time.NewTimer(1 * time.Minute)
	defer timeoutT.Stop()

	for {
		select {
		case <-time.After(2 * time.Second):
			if err := handler(); err == nil {
				return nil
			}

		case <-n.waitCh:
			return fmt.Errorf("node stopped: %v", n.exitErr)

		case <-timeoutT.C:
			return fmt.Errorf("timeout")
		}
	}
}
