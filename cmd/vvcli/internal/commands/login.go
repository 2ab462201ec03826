package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/wolfeidau/victimvoice/internal/models"
	"github.com/wolfeidau/victimvoice/internal/requests"
	"github.com/wolfeidau/victimvoice/internal/session"
)

// LoginCmd runs the user phone login.
type LoginCmd struct {
	SendOTP LoginSendOTPCmd `cmd:"" name:"send-otp" help:"Text a verification code to a phone"`
	Verify  LoginVerifyCmd  `cmd:"" help:"Verify the code and save the session"`
}

type LoginSendOTPCmd struct {
	CountryCode string `help:"Country calling code prefixed to the phone, e.g. +91"`
	Phone       string `help:"Phone number" required:""`
}

func (c *LoginSendOTPCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	flow := requests.NewLoginFlow(e.client(nil), e.store, e.notifier)
	if err := flow.SendOTP(ctx, c.CountryCode, c.Phone); err != nil {
		return err
	}

	fmt.Fprintln(e.out, "Run 'vvcli login verify --phone PHONE --otp CODE' once the code arrives.")
	return nil
}

type LoginVerifyCmd struct {
	Phone string `help:"Phone number the code was sent to" required:""`
	OTP   string `name:"otp" help:"Verification code" required:""`
}

func (c *LoginVerifyCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	flow := requests.NewLoginFlow(e.client(nil), e.store, e.notifier)
	if _, err := flow.VerifyOTP(ctx, c.Phone, c.OTP); err != nil {
		return err
	}

	fmt.Fprintln(e.out, "Logged in.")
	return nil
}

// AdminCmd groups administrator commands.
type AdminCmd struct {
	Login AdminLoginCmd `cmd:"" help:"Log in as an administrator"`
}

type AdminLoginCmd struct {
	Email    string `help:"Administrator email" required:""`
	Password string `help:"Administrator password" required:"" env:"VV_ADMIN_PASSWORD"`
}

func (c *AdminLoginCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	flow := requests.NewLoginFlow(e.client(nil), e.store, e.notifier)
	_, err = flow.AdminLogin(ctx, c.Email, c.Password)
	return err
}

type LogoutCmd struct {
	Admin bool `help:"Clear the administrator session instead of the user session"`
}

func (c *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	flow := requests.NewLoginFlow(e.client(nil), e.store, e.notifier)
	return flow.Logout(models.RoleFromFlag(c.Admin))
}

// WhoamiCmd reports which sessions are usable. Expired tokens are cleared.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROLE\tSTATUS\tUSER ID\tEXPIRES\tFINGERPRINT")

	for _, role := range []models.Role{models.RoleUser, models.RoleAdmin} {
		sess, err := e.guard.Check(role)
		if err != nil {
			if !errors.Is(err, session.ErrUnauthenticated) {
				return err
			}
			fmt.Fprintf(w, "%s\tlogged out\t-\t-\t-\n", role)
			continue
		}

		userID := sess.UserID()
		if userID == "" {
			userID = "-"
		}

		fp := session.Fingerprint(sess.Raw())
		if len(fp) > 12 {
			fp = fp[:12] + "..."
		}

		fmt.Fprintf(w, "%s\tlogged in\t%s\t%s\t%s\n", role, userID, sess.ExpiresAt().Local().Format(time.DateTime), fp)
	}

	return w.Flush()
}
