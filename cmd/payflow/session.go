package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/simaogato/roomsplit-payments/internal/domain"
	"github.com/simaogato/roomsplit-payments/internal/usecase/paymentflow"
)

// errQuit ends a session the user left on purpose
var errQuit = errors.New("quit")

// gatewayTimeout bounds each gateway call made by a session
const gatewayTimeout = 15 * time.Second

// gatewayContext derives the context for one gateway call. It keeps ctx values but not its
// cancellation: an interrupt must not abort a confirm already sent, the guard decides what
// happens once the call settles.
func gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), gatewayTimeout)
}

// prompter reads one trimmed answer per line
type prompter struct {
	r   *bufio.Reader
	out io.Writer
}

func (p *prompter) ask(question string) (string, error) {
	fmt.Fprint(p.out, question)

	line, err := p.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// runSession drives one controller through bank selection, initiation and confirmation.
// It returns io.EOF when input ends, leaving any open transaction to the caller's guard.
// A failed initiate ends the session: no transaction exists, so there is nothing to resume.
func runSession(ctx context.Context, c *paymentflow.Controller, in io.Reader, out io.Writer) error {
	p := &prompter{r: bufio.NewReader(in), out: out}

	loadCtx, cancel := gatewayContext(ctx)
	banks, err := c.LoadBanks(loadCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to load banks: %w", err)
	}
	if len(banks) == 0 {
		fmt.Fprintln(out, "This room has no bank destinations configured.")
		return domain.ErrNoBanksAvailable
	}

	for {
		snap := c.Snapshot()
		fmt.Fprintf(out, "\n%s bill: %s\n", snap.BillType, snap.Amount.StringFixed(2))

		if err := chooseBank(p, c, banks); err != nil {
			return err
		}

		initCtx, cancel := gatewayContext(ctx)
		snap, err = c.Initiate(initCtx)
		cancel()
		if err != nil {
			if domain.IsKind(err, domain.KindPreTransaction) {
				fmt.Fprintf(out, "Could not open the transaction: %v\n", err)
			}
			return err
		}

		bank, _ := domain.FindBank(c.Banks(), snap.BankName)
		fmt.Fprintf(out, "\nTransfer %s to\n", snap.Amount.StringFixed(2))
		fmt.Fprintf(out, "  Bank:      %s\n", bank.BankName)
		fmt.Fprintf(out, "  Account:   %s\n", bank.AccountNumber)
		fmt.Fprintf(out, "  Name:      %s\n", bank.AccountName)
		if bank.QRRef != "" {
			fmt.Fprintf(out, "  QR:        %s\n", bank.QRRef)
		}
		fmt.Fprintf(out, "  Reference: %s\n", snap.ReferenceNumber)

		if err := awaitDecision(ctx, p, c); err != nil {
			return err
		}

		again, err := p.ask("Pay another bill? [y/N]: ")
		if err != nil {
			return err
		}
		if !strings.EqualFold(again, "y") {
			return errQuit
		}
		if err := c.Reset(); err != nil {
			return err
		}
	}
}

func chooseBank(p *prompter, c *paymentflow.Controller, banks []domain.BankDestination) error {
	for i, b := range banks {
		marker := " "
		if b.BankName == c.Snapshot().BankName {
			marker = "*"
		}
		fmt.Fprintf(p.out, " %s %d) %s\n", marker, i+1, b.BankName)
	}

	for {
		answer, err := p.ask("Select bank [enter keeps *]: ")
		if err != nil {
			return err
		}
		if answer == "" {
			return nil
		}

		n, err := strconv.Atoi(answer)
		if err != nil || n < 1 || n > len(banks) {
			fmt.Fprintf(p.out, "Enter a number between 1 and %d.\n", len(banks))
			continue
		}
		return c.SelectBank(banks[n-1].BankName)
	}
}

func awaitDecision(ctx context.Context, p *prompter, c *paymentflow.Controller) error {
	for {
		answer, err := p.ask("Type 'confirm' once transferred, or 'cancel': ")
		if err != nil {
			return err
		}

		switch strings.ToLower(answer) {
		case "confirm":
			callCtx, cancel := gatewayContext(ctx)
			snap, err := c.Confirm(callCtx)
			cancel()
			if err != nil {
				if domain.IsKind(err, domain.KindInTransaction) {
					fmt.Fprintf(p.out, "Confirmation failed, the transaction is still open: %v\n", err)
					continue
				}
				if domain.IsKind(err, domain.KindClosed) {
					fmt.Fprintf(p.out, "Payment %s is no longer open (expired or cancelled). Start a new payment to pay this bill.\n", snap.ReferenceNumber)
					return nil
				}
				return err
			}
			fmt.Fprintf(p.out, "Payment %s confirmed.\n", snap.ReferenceNumber)
			return nil
		case "cancel":
			callCtx, cancel := gatewayContext(ctx)
			snap, err := c.Cancel(callCtx)
			cancel()
			if err != nil {
				return err
			}
			fmt.Fprintf(p.out, "Payment %s cancelled.\n", snap.ReferenceNumber)
			return nil
		default:
			fmt.Fprintln(p.out, "Please type 'confirm' or 'cancel'.")
		}
	}
}
