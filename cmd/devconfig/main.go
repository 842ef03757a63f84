/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


// Package main sends a single configure request to a device and prints the
// device's response.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/devscan/pkg/configure"
	"github.com/carverauto/devscan/pkg/lifecycle"
	"github.com/carverauto/devscan/pkg/logger"
	"github.com/carverauto/devscan/pkg/models"
	"github.com/carverauto/devscan/pkg/transport"
)

var errDeviceRejected = errors.New("device rejected the configuration")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

type options struct {
	uuid       string
	iface      string
	method     string
	address    string
	netmask    string
	gateway    string
	ttl        int
	timeout    time.Duration
	group      string
	interfaces string
}

func parseFlags() *options {
	opts := &options{}

	flag.StringVar(&opts.uuid, "uuid", "", "UUID of the device to configure")
	flag.StringVar(&opts.iface, "interface", "eth0", "Device interface to configure")
	flag.StringVar(&opts.method, "method", string(models.ConfigMethodDHCP),
		"Configuration method (dhcp, manual, routerSolicitation)")
	flag.StringVar(&opts.address, "address", "", "Static IPv4 address for manual configuration")
	flag.StringVar(&opts.netmask, "netmask", "", "IPv4 netmask for manual configuration")
	flag.StringVar(&opts.gateway, "gateway", "", "New IPv4 default gateway")
	flag.IntVar(&opts.ttl, "ttl", models.DefaultConfigureTTL, "Multicast TTL of the request")
	flag.DurationVar(&opts.timeout, "timeout", 5*time.Second, "How long to wait for the response")
	flag.StringVar(&opts.group, "group", transport.DefaultConfigureGroup, "Configure multicast group")
	flag.StringVar(&opts.interfaces, "interfaces", "", "Comma separated local interfaces to send on")

	flag.Parse()

	return opts
}

func (o *options) params() (*models.ConfigureParams, error) {
	device, err := models.NewConfigureDevice(o.uuid)
	if err != nil {
		return nil, err
	}

	var manual *models.ManualIPv4
	if o.address != "" || o.netmask != "" {
		manual = &models.ManualIPv4{ManualAddress: o.address, ManualNetmask: o.netmask}
	}

	iface, err := models.NewConfigureInterface(o.iface, models.ConfigMethod(o.method), manual)
	if err != nil {
		return nil, err
	}

	var gateway *models.ConfigureDefaultGateway
	if o.gateway != "" {
		gateway = &models.ConfigureDefaultGateway{IPv4Address: o.gateway}
	}

	settings, err := models.NewConfigureNetSettings(iface, gateway)
	if err != nil {
		return nil, err
	}

	return models.NewConfigureParamsWithTTL(device, settings, o.ttl)
}

func (o *options) interfaceList() []string {
	if o.interfaces == "" {
		return nil
	}

	names := strings.Split(o.interfaces, ",")
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}

	return names
}

func run() error {
	opts := parseFlags()

	params, err := opts.params()
	if err != nil {
		return err
	}

	cliLogger, err := lifecycle.CreateComponentLogger("devconfig", logger.DefaultConfig())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender, err := transport.NewSender(transport.SenderConfig{
		Group:      opts.group,
		Interfaces: opts.interfaceList(),
	}, cliLogger)
	if err != nil {
		return err
	}
	defer func() { _ = sender.Close() }()

	receiver, err := transport.NewReceiver(transport.ReceiverConfig{
		Group:      opts.group,
		Interfaces: opts.interfaceList(),
	}, cliLogger)
	if err != nil {
		return err
	}

	svc := configure.NewService(sender, receiver, cliLogger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return receiver.Run(gctx)
	})

	g.Go(func() error {
		return svc.Run(gctx)
	})

	// Give the receiver a moment to join the group before the request goes out.
	time.Sleep(100 * time.Millisecond)

	sendCtx, sendCancel := context.WithTimeout(gctx, opts.timeout)
	resp, sendErr := svc.SendConfiguration(sendCtx, params)

	sendCancel()
	cancel()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		cliLogger.Debug().Err(err).Msg("Response listener stopped")
	}

	if sendErr != nil {
		return sendErr
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	fmt.Println(string(out))

	if resp.Failed() {
		return fmt.Errorf("%w: %w", errDeviceRejected, resp.Error)
	}

	return nil
}
