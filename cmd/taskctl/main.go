package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/Joseda-hg/taskflow/internal/client"
	"github.com/Joseda-hg/taskflow/internal/model"
)

const usage = `usage: taskctl <command> [flags]

commands:
  register  --email E --password P --name N
  login     --email E --password P
  logout
  list      [--status S] [--q TEXT] [--tag T] [--local]
  show      ID
  add       --title T [--description D] [--status S] [--priority P] [--due DATE] [--tag T]...
  update    ID [--title T] [--description D] [--status S] [--priority P] [--due DATE|""] [--tag T]...
  done      ID
  rm        ID
  stats     [--status S] [--q TEXT] [--tag T]
  health    [--api URL]
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	sessionPath, err := client.DefaultSessionPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := &cli{sessionPath: sessionPath, out: os.Stdout}
	if err := app.run(context.Background(), os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if client.IsUnauthorized(err) {
			fmt.Fprintln(os.Stderr, "session expired or invalid; run taskctl login")
		}
		os.Exit(1)
	}
}

type cli struct {
	sessionPath string
	out         io.Writer
}

func (a *cli) run(ctx context.Context, command string, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch command {
	case "register":
		return a.register(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.logout()
	case "list", "ls":
		return a.list(ctx, args)
	case "show":
		return a.show(ctx, args)
	case "add":
		return a.add(ctx, args)
	case "update":
		return a.update(ctx, args)
	case "done":
		return a.done(ctx, args)
	case "rm", "delete":
		return a.remove(ctx, args)
	case "stats":
		return a.stats(ctx, args)
	case "health":
		return a.health(ctx, args)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *cli) register(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("register", pflag.ContinueOnError)
	baseURL := flags.String("api", defaultBaseURL(), "API base URL")
	email := flags.String("email", "", "email")
	password := flags.String("password", "", "password")
	name := flags.String("name", "", "display name")
	if err := flags.Parse(args); err != nil {
		return err
	}

	c := client.New(*baseURL, "")
	resp, err := c.Register(ctx, *email, *password, *name)
	if err != nil {
		return err
	}
	if err := client.SaveSession(a.sessionPath, client.Session{BaseURL: *baseURL, Token: resp.Token, User: resp.User}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s. Logged in as %s\n", resp.Message, resp.User.Email)
	return nil
}

func (a *cli) login(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("login", pflag.ContinueOnError)
	baseURL := flags.String("api", defaultBaseURL(), "API base URL")
	email := flags.String("email", "", "email")
	password := flags.String("password", "", "password")
	if err := flags.Parse(args); err != nil {
		return err
	}

	c := client.New(*baseURL, "")
	resp, err := c.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	if err := client.SaveSession(a.sessionPath, client.Session{BaseURL: *baseURL, Token: resp.Token, User: resp.User}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", resp.User.Email)
	return nil
}

func (a *cli) logout() error {
	if err := client.ClearSession(a.sessionPath); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *cli) list(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("list", pflag.ContinueOnError)
	filter := filterFlags(flags)
	local := flags.Bool("local", false, "fetch every task and filter on this machine")
	if err := flags.Parse(args); err != nil {
		return err
	}

	c, err := a.client()
	if err != nil {
		return err
	}
	var list []model.Task
	if *local {
		list, err = fetchFiltered(ctx, c, filter.get())
	} else {
		list, err = c.ListTasks(ctx, filter.get())
	}
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No tasks")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tDUE\tTITLE\tTAGS")
	for _, task := range list {
		due := "-"
		if task.DueDate != nil {
			due = task.DueDate.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", task.ID, task.Status, task.Priority, due, task.Title, strings.Join(task.Tags, ","))
	}
	return tw.Flush()
}

func (a *cli) show(ctx context.Context, args []string) error {
	id, err := singleArg(args)
	if err != nil {
		return err
	}
	c, err := a.client()
	if err != nil {
		return err
	}
	task, err := c.GetTask(ctx, id)
	if err != nil {
		return err
	}

	due := "-"
	if task.DueDate != nil {
		due = task.DueDate.Format("2006-01-02")
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", task.ID)
	fmt.Fprintf(tw, "title\t%s\n", task.Title)
	fmt.Fprintf(tw, "description\t%s\n", task.Description)
	fmt.Fprintf(tw, "status\t%s\n", task.Status)
	fmt.Fprintf(tw, "priority\t%s\n", task.Priority)
	fmt.Fprintf(tw, "due\t%s\n", due)
	fmt.Fprintf(tw, "tags\t%s\n", strings.Join(task.Tags, ","))
	fmt.Fprintf(tw, "created\t%s\n", task.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(tw, "updated\t%s\n", task.UpdatedAt.Local().Format(time.DateTime))
	return tw.Flush()
}

func (a *cli) add(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("add", pflag.ContinueOnError)
	fields := taskFlags(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}

	c, err := a.client()
	if err != nil {
		return err
	}
	task, err := c.CreateTask(ctx, fields.collect(flags))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created %s\n", task.ID)
	return nil
}

func (a *cli) update(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("update", pflag.ContinueOnError)
	fields := taskFlags(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}
	id, err := singleArg(flags.Args())
	if err != nil {
		return err
	}

	c, err := a.client()
	if err != nil {
		return err
	}
	task, err := c.UpdateTask(ctx, id, fields.collect(flags))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated %s (%s)\n", task.ID, task.Status)
	return nil
}

func (a *cli) done(ctx context.Context, args []string) error {
	id, err := singleArg(args)
	if err != nil {
		return err
	}
	c, err := a.client()
	if err != nil {
		return err
	}
	status := model.StatusCompleted
	if _, err := c.UpdateTask(ctx, id, client.TaskFields{Status: &status}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Completed %s\n", id)
	return nil
}

func (a *cli) remove(ctx context.Context, args []string) error {
	id, err := singleArg(args)
	if err != nil {
		return err
	}
	c, err := a.client()
	if err != nil {
		return err
	}
	if err := c.DeleteTask(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s\n", id)
	return nil
}

// stats counts the whole list, or the subset matching the filter flags.
func (a *cli) stats(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("stats", pflag.ContinueOnError)
	filter := filterFlags(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}

	c, err := a.client()
	if err != nil {
		return err
	}
	list, err := fetchFiltered(ctx, c, filter.get())
	if err != nil {
		return err
	}
	stats := client.CountByStatus(list)
	fmt.Fprintf(a.out, "total %d  todo %d  in-progress %d  completed %d\n", stats.Total, stats.Todo, stats.InProgress, stats.Completed)
	return nil
}

func (a *cli) health(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("health", pflag.ContinueOnError)
	baseURL := flags.String("api", "", "API base URL (defaults to the logged-in server)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	url := *baseURL
	if url == "" {
		url = defaultBaseURL()
		if session, err := client.LoadSession(a.sessionPath); err == nil {
			url = session.BaseURL
		}
	}
	if err := client.New(url, "").Health(ctx); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s is healthy\n", url)
	return nil
}

func (a *cli) client() (*client.Client, error) {
	session, err := client.LoadSession(a.sessionPath)
	if errors.Is(err, client.ErrNoSession) {
		return nil, errors.New("not logged in; run taskctl login")
	}
	if err != nil {
		return nil, err
	}
	return client.New(session.BaseURL, session.Token), nil
}

type filterFlagValues struct {
	status *string
	query  *string
	tag    *string
}

func filterFlags(flags *pflag.FlagSet) filterFlagValues {
	return filterFlagValues{
		status: flags.String("status", "", "todo, in-progress, completed or all"),
		query:  flags.String("q", "", "title search"),
		tag:    flags.String("tag", "", "tag"),
	}
}

func (v filterFlagValues) get() model.Filter {
	status := *v.status
	if status == "all" {
		status = ""
	}
	return model.Filter{Status: status, Query: *v.query, Tag: *v.tag}
}

// fetchFiltered lists every task and narrows it locally.
func fetchFiltered(ctx context.Context, c *client.Client, filter model.Filter) ([]model.Task, error) {
	list, err := c.ListTasks(ctx, model.Filter{})
	if err != nil {
		return nil, err
	}
	return client.FilterTasks(list, filter), nil
}

type taskFlagValues struct {
	title       *string
	description *string
	status      *string
	priority    *string
	due         *string
	tags        *[]string
}

func taskFlags(flags *pflag.FlagSet) taskFlagValues {
	return taskFlagValues{
		title:       flags.String("title", "", "title"),
		description: flags.String("description", "", "description"),
		status:      flags.String("status", "", "todo, in-progress or completed"),
		priority:    flags.String("priority", "", "low, medium or high"),
		due:         flags.String("due", "", "due date (YYYY-MM-DD); empty clears it on update"),
		tags:        flags.StringSlice("tag", nil, "tag (repeatable)"),
	}
}

// collect keeps only the flags that were set on the command line.
func (v taskFlagValues) collect(flags *pflag.FlagSet) client.TaskFields {
	var fields client.TaskFields
	if flags.Changed("title") {
		fields.Title = v.title
	}
	if flags.Changed("description") {
		fields.Description = v.description
	}
	if flags.Changed("status") {
		fields.Status = v.status
	}
	if flags.Changed("priority") {
		fields.Priority = v.priority
	}
	if flags.Changed("due") {
		fields.DueDate = v.due
	}
	if flags.Changed("tag") {
		fields.Tags = v.tags
	}
	return fields
}

func singleArg(args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", errors.New("expected exactly one task id")
	}
	return args[0], nil
}

func defaultBaseURL() string {
	if value := os.Getenv("TASKFLOW_API"); value != "" {
		return value
	}
	return client.DefaultBaseURL
}
