// Package notify emails import summaries to formation coordinators through
// Amazon SES.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/pkg/errors"

	"github.com/ignite/beneficiary-import/internal/config"
	"github.com/ignite/beneficiary-import/internal/domain"
	"github.com/ignite/beneficiary-import/internal/pkg/logger"
)

type sendEmailAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESNotifier sends one plain-text summary per import.
type SESNotifier struct {
	client     sendEmailAPI
	from       string
	recipients []string
}

// NewSESNotifier builds a notifier from config. Static credentials are used
// when both keys are set; otherwise the default AWS credential chain applies.
func NewSESNotifier(ctx context.Context, cfg config.NotifyConfig) (*SESNotifier, error) {
	if cfg.FromAddress == "" || len(cfg.Recipients) == 0 {
		return nil, errors.New("notify: from_address and recipients are required")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load AWS config")
	}
	return &SESNotifier{client: sesv2.NewFromConfig(awsCfg), from: cfg.FromAddress, recipients: cfg.Recipients}, nil
}

// NotifyImport sends the summary for one import log entry.
func (n *SESNotifier) NotifyImport(ctx context.Context, entry domain.ImportLog) error {
	subject, body := summary(entry)
	out, err := n.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.from),
		Destination:      &types.Destination{ToAddresses: n.recipients},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("formation_id"), Value: aws.String(entry.FormationID)},
			{Name: aws.String("import_status"), Value: aws.String(string(entry.Status))},
		},
	})
	if err != nil {
		return errors.Wrap(err, "ses send import summary")
	}
	logger.Debug("import summary sent", "formation_id", entry.FormationID, "message_id", aws.ToString(out.MessageId))
	return nil
}

func summary(e domain.ImportLog) (string, string) {
	subject := fmt.Sprintf("Import %s: %d new beneficiaries, %d new enrollments", e.FileName, e.NewBeneficiaries, e.LinksCreated)

	var b strings.Builder
	fmt.Fprintf(&b, "Formation: %s\n", e.FormationID)
	fmt.Fprintf(&b, "File: %s\n", e.FileName)
	fmt.Fprintf(&b, "Rows read: %d\n", e.TotalRows)
	fmt.Fprintf(&b, "Duplicate rows skipped: %d\n", e.DuplicateRows)
	fmt.Fprintf(&b, "New beneficiaries: %d\n", e.NewBeneficiaries)
	fmt.Fprintf(&b, "New enrollment links: %d\n", e.LinksCreated)
	if e.ArchiveKey != "" {
		fmt.Fprintf(&b, "Archived as: %s\n", e.ArchiveKey)
	}
	fmt.Fprintf(&b, "Imported at: %s\n", e.CreatedAt.Format("2006-01-02 15:04 MST"))
	return subject, b.String()
}
