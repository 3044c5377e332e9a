package main

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/circulation"
)

type (
	overdueLoan struct {
		Title       string
		Author      string
		DueDate     time.Time
		DaysOverdue int64
		Fine        int64
	}

	// overdueReminder is the data of the overdue_reminder email template.
	overdueReminder struct {
		MemberName string
		Loans      []overdueLoan

		email string
	}
)

func (cli *commandLine) markLost(ctx context.Context, loanID string) error {
	loan, err := cli.circulationSvc.MarkLost(ctx, loanID)
	if err != nil {
		return errors.Wrap(err, "marking circulation record as lost")
	}
	fmt.Fprintf(cli.out, "circulation record %s marked as lost (book %s, member %s)\n", loan.ID, loan.BookID, loan.MemberID)
	return nil
}

func (cli *commandLine) remindOverdue(ctx context.Context, dry bool) error {
	loans, err := cli.circulationSvc.Overdue(ctx)
	if err != nil {
		return errors.Wrap(err, "querying overdue loans")
	}

	reminders, skipped := cli.groupOverdue(loans)
	if len(reminders) == 0 {
		fmt.Fprintf(cli.out, "no reminder to send (%d member(s) without email)\n", skipped)
		return nil
	}

	if dry {
		for _, r := range reminders {
			fmt.Fprintf(cli.out, "%s <%s>:\n", r.MemberName, r.email)
			for _, l := range r.Loans {
				fmt.Fprintf(cli.out, "  - %s: due %s, %d day(s) late, fine %d\n", l.Title, l.DueDate.Format("2006-01-02"), l.DaysOverdue, l.Fine)
			}
		}
		fmt.Fprintf(cli.out, "%d reminder(s) not sent (dry run), %d member(s) without email\n", len(reminders), skipped)
		return nil
	}

	messages := make([]*core.EmailMessage, 0, len(reminders))
	for _, r := range reminders {
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: r.MemberName, Address: r.email}},
			Subject:      "Overdue books",
			TemplateName: "overdue_reminder",
			TemplateData: r,
		})
	}
	if err = cli.mailSvc.SendMessages(messages...); err != nil {
		return errors.Wrap(err, "sending reminders")
	}
	fmt.Fprintf(cli.out, "%d reminder(s) sent, %d member(s) without email\n", len(reminders), skipped)
	return nil
}

// groupOverdue builds one reminder per member with an email, sorted by member name.
// skipped is the number of members that have no email.
func (cli *commandLine) groupOverdue(loans []circulation.LoanDetail) (reminders []*overdueReminder, skipped int) {
	fines := cli.circulationSvc.FinePolicy()
	now := cli.circulationSvc.Now()

	byMember := make(map[string]*overdueReminder)
	noEmail := make(map[string]struct{})
	for _, l := range loans {
		if l.Member.Email == "" {
			noEmail[l.MemberID] = struct{}{}
			continue
		}
		r, ok := byMember[l.MemberID]
		if !ok {
			r = &overdueReminder{MemberName: l.Member.Name, email: l.Member.Email}
			byMember[l.MemberID] = r
			reminders = append(reminders, r)
		}
		r.Loans = append(r.Loans, overdueLoan{
			Title:       l.Book.Title,
			Author:      l.Book.Author,
			DueDate:     l.DueDate,
			DaysOverdue: fines.DaysOverdue(l.DueDate, now),
			Fine:        fines.Fine(l.DueDate, now),
		})
	}
	sort.SliceStable(reminders, func(i, j int) bool { return reminders[i].MemberName < reminders[j].MemberName })
	return reminders, len(noEmail)
}
