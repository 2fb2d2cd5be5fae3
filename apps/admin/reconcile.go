package main

import (
	"context"
	"fmt"
	"strings"
	"time"
)

func (cli *commandLine) reconcile() error {
	res, err := cli.ledgerSvc.Reconcile(context.Background())
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%d fees checked, %d corrected\n", res.Checked, res.Corrected)
	if res.Corrected > 0 {
		_, _ = fmt.Fprintln(cli.out, "  "+strings.Join(res.CorrectedFeeIDs, "\n  "))
	}
	return nil
}

func (cli *commandLine) sendReminders(asOf time.Time) error {
	sent, err := cli.ledgerSvc.SendOverdueReminders(context.Background(), asOf)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%d reminders sent for fees due before %s\n", sent, asOf.Format("2006-01-02"))
	return nil
}
