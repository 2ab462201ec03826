package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/victimvoice/internal/export"
	"github.com/wolfeidau/victimvoice/internal/models"
	"github.com/wolfeidau/victimvoice/internal/requests"
)

// RequestsCmd works with support requests.
type RequestsCmd struct {
	List    RequestsListCmd    `cmd:"" help:"List support requests"`
	Show    RequestsShowCmd    `cmd:"" help:"Show a support request"`
	Status  RequestsStatusCmd  `cmd:"" help:"Change the status of a request (admin)"`
	Comment RequestsCommentCmd `cmd:"" help:"Add a comment to a request"`
	New     RequestsNewCmd     `cmd:"" help:"Submit a new support request"`
}

type RequestsListCmd struct {
	Admin  bool   `help:"List every request using the administrator session"`
	Query  string `help:"Filter by request ID, user ID or phone (admin)"`
	Export string `help:"Write the listed requests to an xlsx file (admin)" placeholder:"FILE" type:"path"`
}

func (c *RequestsListCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	role := models.RoleFromFlag(c.Admin)
	if !c.Admin && (c.Query != "" || c.Export != "") {
		return fmt.Errorf("--query and --export need --admin: %w", requests.ErrAdminOnly)
	}

	sess, err := e.session(role)
	if err != nil {
		return err
	}

	view := requests.NewListView(e.client(sess), sess, e.notifier)
	if err := view.Load(ctx); err != nil {
		return err
	}
	view.SetQuery(c.Query)

	printList(e.out, view, e.dates())

	if c.Export != "" {
		visible := view.Visible()
		if err := export.SaveSpreadsheet(c.Export, visible, e.dates()); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Exported %d requests to %s\n", len(visible), c.Export)
	}

	return nil
}

func printList(out io.Writer, view *requests.ListView, dates export.DateOptions) {
	if state, empty := view.EmptyState(); empty {
		fmt.Fprintln(out, state.Message)
		fmt.Fprintf(out, "%s: vvcli requests new\n", state.Action)
		return
	}

	rows := view.Summaries()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No requests found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tSEVERITY\tSTATUS\tCREATED\tMESSAGES\tLAST UPDATE")
	for _, r := range rows {
		messages := r.Messages
		if messages == "" {
			messages = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Title, r.Severity, r.StatusLabel,
			dates.Format(r.CreatedAt),
			messages, truncate(r.LastUpdate, 40))
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal requests: %d\n", len(rows))
}

type RequestsShowCmd struct {
	ID       string `arg:"" help:"Request ID"`
	Admin    bool   `help:"Use the administrator session"`
	Report   string `help:"Write a PDF report (admin)" placeholder:"FILE" type:"path"`
	Download string `help:"Download evidence into a directory (admin)" placeholder:"DIR" type:"path"`
	Archive  bool   `help:"Bundle downloaded evidence into a single zip"`
}

func (c *RequestsShowCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	if !c.Admin && (c.Report != "" || c.Download != "") {
		return fmt.Errorf("--report and --download need --admin: %w", requests.ErrAdminOnly)
	}

	sess, err := e.session(models.RoleFromFlag(c.Admin))
	if err != nil {
		return err
	}

	api := e.client(sess)
	view := requests.NewDetailView(api, sess, e.notifier, requests.DetailOptions{
		Policy: e.cfg.StatusPolicy,
		Strict: e.cfg.StrictTransitions,
	})
	if err := view.Load(ctx, c.ID); err != nil {
		return err
	}

	req, _ := view.Request()
	printRequest(e.out, req, e.dates())

	if c.Report != "" {
		path := c.Report
		if isDir(path) {
			path = filepath.Join(path, export.DefaultReportName)
		}
		if err := export.SaveReport(path, req, export.ReportOptions{Dates: e.dates()}); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Report written to %s\n", path)
	}

	if c.Download != "" {
		if len(req.Evidence) == 0 {
			fmt.Fprintln(e.out, "No evidence to download.")
			return nil
		}

		var (
			done []export.Downloaded
			err  error
		)
		if c.Archive {
			if err := ensureDir(c.Download); err != nil {
				return err
			}
			path := filepath.Join(c.Download, export.DefaultArchiveName)
			done, err = export.SaveEvidenceArchive(ctx, api, req.Evidence, path)
			if len(done) > 0 {
				fmt.Fprintf(e.out, "Archived %d evidence files to %s\n", len(done), path)
			}
		} else {
			done, err = export.DownloadEvidence(ctx, api, req.Evidence, c.Download)
			for _, d := range done {
				fmt.Fprintf(e.out, "Downloaded %s (%d bytes)\n", filepath.Join(c.Download, d.Name), d.Bytes)
			}
		}
		if err != nil {
			return fmt.Errorf("some evidence could not be downloaded: %w", err)
		}
	}

	return nil
}

func printRequest(out io.Writer, r models.SupportRequest, dates export.DateOptions) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Request ID:\t%s\n", r.Identifier())
	fmt.Fprintf(w, "Status:\t%s\n", r.Status.Label())
	fmt.Fprintf(w, "Type:\t%s\n", r.HarassmentType.Label())
	fmt.Fprintf(w, "Severity:\t%s\n", r.SeverityLevel)
	fmt.Fprintf(w, "Submitted:\t%s\n", dates.Format(r.CreatedAt))
	fmt.Fprintf(w, "User ID:\t%s\n", r.UserID)
	fmt.Fprintf(w, "Phone:\t%s\n", r.Phone)
	fmt.Fprintf(w, "Address:\t%s\n", r.UserAddress)
	fmt.Fprintf(w, "Accused:\t%s\n", r.AccusedName)
	fmt.Fprintf(w, "Accused phone:\t%s\n", r.AccusedPhone)
	fmt.Fprintf(w, "Accused address:\t%s\n", r.AccusedAddress)
	w.Flush()

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Description:")
	fmt.Fprintln(out, "  "+r.Description)

	if len(r.Evidence) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Evidence:")
		for i, label := range r.EvidenceLabels() {
			fmt.Fprintf(out, "  %s: %s\n", label, r.Evidence[i].URL)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Comments:")
	if len(r.Comments) == 0 {
		fmt.Fprintln(out, "  "+models.NoUpdates)
	}
	for _, cm := range r.Comments {
		fmt.Fprintf(out, "  [%s] %s\n", cm.Sender, cm.Content)
	}
}

type RequestsStatusCmd struct {
	ID     string `arg:"" help:"Request ID"`
	Status string `arg:"" help:"New status: pending, in_progress, resolved or closed"`
}

func (c *RequestsStatusCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	status, err := models.ParseStatus(c.Status)
	if err != nil {
		return err
	}

	sess, err := e.session(models.RoleAdmin)
	if err != nil {
		return err
	}

	view := requests.NewDetailView(e.client(sess), sess, e.notifier, requests.DetailOptions{
		Policy: e.cfg.StatusPolicy,
		Strict: e.cfg.StrictTransitions,
	})
	if err := view.Load(ctx, c.ID); err != nil {
		return err
	}

	err = view.SetStatus(ctx, status)
	log.Debug().Str("id", c.ID).Str("displayed", string(view.Status())).Msg("status after update")
	if err != nil {
		return err
	}

	fmt.Fprintf(e.out, "Status: %s\n", view.Status().Label())
	return nil
}

type RequestsCommentCmd struct {
	ID    string `arg:"" help:"Request ID"`
	Text  string `arg:"" help:"Comment text"`
	Admin bool   `help:"Comment as the administrator"`
}

func (c *RequestsCommentCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	sess, err := e.session(models.RoleFromFlag(c.Admin))
	if err != nil {
		return err
	}

	view := requests.NewDetailView(e.client(sess), sess, e.notifier, requests.DetailOptions{})
	if err := view.Load(ctx, c.ID); err != nil {
		return err
	}

	view.SetDraft(c.Text)
	return view.AddComment(ctx)
}

type RequestsNewCmd struct {
	File               string `help:"YAML/JSON form file" placeholder:"FORM.yaml" type:"path"`
	UserAddress        string `help:"Your address"`
	AccusedName        string `help:"Name of the accused"`
	AccusedAddress     string `help:"Address of the accused"`
	AccusedPhone       string `help:"Phone number of the accused"`
	HarassmentType     string `help:"One of cyber_harassment, workplace_harassment, stalking, verbal_abuse, physical_threat, other"`
	SeverityLevel      string `help:"One of low, medium, high, critical"`
	Description        string `help:"What happened"`
	ScreenshotEvidence string `help:"Link to a screenshot"`
	VideoEvidence      string `help:"Link to a video"`
	List               bool   `help:"List requests after submission" default:"true" negatable:""`
}

func (c *RequestsNewCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	form, err := c.form()
	if err != nil {
		return err
	}

	sess, err := e.session(models.RoleUser)
	if err != nil {
		return err
	}

	api := e.client(sess)
	formView := requests.NewFormView(api, sess, e.notifier, e.cfg.RequireAllEvidence)
	route, err := formView.Submit(ctx, form)
	if err != nil {
		return err
	}
	log.Debug().Str("route", route).Msg("request submitted")

	if c.List {
		view := requests.NewListView(api, sess, e.notifier)
		if err := view.Load(ctx); err != nil {
			fmt.Fprintf(e.out, "Failed to list requests: %v\n", err)
			return nil
		}
		printList(e.out, view, e.dates())
	}

	return nil
}

// form loads the form file when given, then applies any field flags over it.
func (c *RequestsNewCmd) form() (models.RequestForm, error) {
	var form models.RequestForm
	if c.File != "" {
		loaded, err := requests.LoadForm(c.File)
		if err != nil {
			return form, err
		}
		form = loaded
	}

	override(&form.UserAddress, c.UserAddress)
	override(&form.AccusedName, c.AccusedName)
	override(&form.AccusedAddress, c.AccusedAddress)
	override(&form.AccusedPhone, c.AccusedPhone)
	override(&form.HarassmentType, c.HarassmentType)
	override(&form.SeverityLevel, c.SeverityLevel)
	override(&form.Description, c.Description)
	override(&form.ScreenshotEvidence, c.ScreenshotEvidence)
	override(&form.VideoEvidence, c.VideoEvidence)

	return form, nil
}

func override(dst *string, flag string) {
	if flag != "" {
		*dst = flag
	}
}

func truncate(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	return nil
}
