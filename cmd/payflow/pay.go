package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	grpcadapter "github.com/simaogato/roomsplit-payments/internal/adapter/grpc"
	"github.com/simaogato/roomsplit-payments/internal/config"
	"github.com/simaogato/roomsplit-payments/internal/usecase/paymentflow"
)

// cancelGrace is how long an interrupted process waits for the abandonment cancel
// once any in-flight gateway call has settled
const cancelGrace = 3 * time.Second

type payOptions struct {
	roomID   string
	amount   string
	billType string
	gateway  string
	token    string
}

func newPayCmd() *cobra.Command {
	opts := &payOptions{}

	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Pay one bill of a room",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPay(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.roomID, "room", "", "Room ID (required)")
	cmd.Flags().StringVar(&opts.amount, "amount", "", "Amount to pay (required)")
	cmd.Flags().StringVar(&opts.billType, "bill-type", "", "Bill type, e.g. RENT or ELECTRICITY (required)")
	cmd.Flags().StringVar(&opts.gateway, "gateway", "", "Gateway address (default from GATEWAY_ADDR)")
	cmd.Flags().StringVar(&opts.token, "token", "", "API token (default from API_TOKEN)")
	_ = cmd.MarkFlagRequired("room")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("bill-type")

	return cmd
}

func runPay(cmd *cobra.Command, opts *payOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.gateway == "" {
		opts.gateway = cfg.GatewayAddr
	}
	if opts.token == "" {
		opts.token = cfg.APIToken
	}

	roomID, err := uuid.Parse(opts.roomID)
	if err != nil {
		return fmt.Errorf("invalid room ID: %w", err)
	}
	amount, err := decimal.NewFromString(opts.amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}

	conn, err := grpcadapter.Dial(opts.gateway)
	if err != nil {
		return err
	}
	defer conn.Close()

	client := grpcadapter.NewClient(conn, opts.token)
	controller, err := paymentflow.NewController(client, client, paymentflow.FlowInput{
		RoomID:   roomID,
		Amount:   amount,
		BillType: opts.billType,
	})
	if err != nil {
		return err
	}

	logger := log.New(cmd.ErrOrStderr(), "payflow: ", log.LstdFlags)
	controller.Logger = logger
	guard := paymentflow.NewGuard(controller)
	guard.Logger = logger

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() {
		done <- runSession(ctx, controller, cmd.InOrStdin(), cmd.OutOrStdout())
	}()

	grace := cancelGrace
	select {
	case err = <-done:
	case <-ctx.Done():
		// A second interrupt kills the process
		stop()
		fmt.Fprintln(cmd.OutOrStdout())
		err = errors.New("interrupted")

		if snap := controller.Snapshot(); snap.State.IsInFlight() {
			fmt.Fprintln(cmd.OutOrStdout(), "Waiting for the gateway to answer (Ctrl-C again to quit now)...")
			grace += gatewayTimeout
		}
	}

	// Leaving the flow by any path is an abandonment for a still-open transaction
	if guard.Teardown("exit") {
		fmt.Fprintln(cmd.OutOrStdout(), "Cancelling the open transaction...")
	}

	graceCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if waitErr := guard.Wait(graceCtx); waitErr != nil {
		logger.Printf("gave up waiting for the cancel: %v", waitErr)
	}

	if errors.Is(err, errQuit) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
