package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/xid"
)

type loadConfig struct {
	QueueURL    string        `env:"SQS_QUEUE_URL,required"`
	Region      string        `env:"AWS_REGION"                envDefault:"us-east-1"`
	Endpoint    string        `env:"SQS_ENDPOINT"`
	Messages    int           `env:"LOAD_TEST_MESSAGES"        envDefault:"1000"`
	Concurrency int           `env:"LOAD_TEST_CONCURRENCY"     envDefault:"10"`
	Timeout     time.Duration `env:"LOAD_TEST_TIMEOUT"         envDefault:"30s"`
	SenderID    string        `env:"LOAD_TEST_SENDER_ID"       envDefault:"loadtester"`
}

type result struct {
	index    int
	duration time.Duration
	err      error
}

type resultMsg result
type completeMsg struct{}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1).MarginBottom(1)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	valueStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("111"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(1, 2)
)

// UI model
type model struct {
	cfg        loadConfig
	spinner    spinner.Model
	progress   progress.Model
	sent       int
	failed     int
	lastErrors []string
	total      time.Duration
	startTime  time.Time
	done       bool
}

func newModel(cfg loadConfig) model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	return model{
		cfg:       cfg,
		spinner:   s,
		progress:  progress.New(progress.WithDefaultGradient()),
		startTime: time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.progress.Width = max(msg.Width-4, 10)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case resultMsg:
		m.total += msg.duration
		if msg.err != nil {
			m.failed++
			m.lastErrors = append([]string{fmt.Sprintf("#%d %v", msg.index, msg.err)}, m.lastErrors...)
			if len(m.lastErrors) > 5 {
				m.lastErrors = m.lastErrors[:5]
			}
		} else {
			m.sent++
		}
		return m, nil

	case completeMsg:
		m.done = true
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("SQS Load Generator") + "\n")

	finished := m.sent + m.failed
	pct := float64(finished) / float64(max(m.cfg.Messages, 1))

	status := m.spinner.View()
	if m.done {
		status = successStyle.Render("✓")
	}
	b.WriteString(fmt.Sprintf("%s %d/%d messages\n", status, finished, m.cfg.Messages))
	b.WriteString(m.progress.ViewAs(pct) + "\n\n")

	var avg time.Duration
	if finished > 0 {
		avg = m.total / time.Duration(finished)
	}
	elapsed := time.Since(m.startTime)

	stats := fmt.Sprintf("%s %s\n%s %s\n%s %s\n%s %s\n%s %s",
		labelStyle.Render("Queue:"), valueStyle.Render(m.cfg.QueueURL),
		labelStyle.Render("Sent:"), successStyle.Render(fmt.Sprintf("%d", m.sent)),
		labelStyle.Render("Failed:"), errorStyle.Render(fmt.Sprintf("%d", m.failed)),
		labelStyle.Render("Avg latency:"), valueStyle.Render(avg.Round(time.Millisecond).String()),
		labelStyle.Render("Throughput:"), valueStyle.Render(fmt.Sprintf("%.2f msg/s", float64(m.sent)/max(elapsed.Seconds(), 0.001))),
	)
	b.WriteString(boxStyle.Render(stats) + "\n")

	for _, e := range m.lastErrors {
		b.WriteString(errorStyle.Render("• "+e) + "\n")
	}

	if m.done {
		b.WriteString(successStyle.Render("\nDone! Press 'q' to quit"))
	} else {
		b.WriteString(labelStyle.Render("\nPress 'q' to quit"))
	}
	return b.String()
}

func sendMessage(ctx context.Context, client *sqs.Client, cfg loadConfig, index int) result {
	sendCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	body := fmt.Sprintf("Hello, world! #%d (%s)", index, xid.New().String())

	start := time.Now()
	_, err := client.SendMessage(sendCtx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(cfg.QueueURL),
		MessageBody: aws.String(body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"SenderId": {
				DataType:    aws.String("String"),
				StringValue: aws.String(cfg.SenderID),
			},
		},
	})

	return result{index: index, duration: time.Since(start), err: err}
}

func run(ctx context.Context, client *sqs.Client, cfg loadConfig, p *tea.Program) {
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				p.Send(resultMsg(sendMessage(ctx, client, cfg, index)))
			}
		}()
	}

send:
	for i := 1; i <= cfg.Messages; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break send
		}
	}
	close(jobs)

	wg.Wait()
	p.Send(completeMsg{})
}

func main() {
	var cfg loadConfig
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCFG, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to load SDK config: %v\n", err)
		os.Exit(1)
	}

	client := sqs.NewFromConfig(awsCFG, func(o *sqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	p := tea.NewProgram(newModel(cfg), tea.WithAltScreen())

	go run(ctx, client, cfg, p)

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
