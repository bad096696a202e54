// Package route53 reads zone records from Amazon Route 53.
package route53

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/miekg/dns"
	"golang.org/x/time/rate"

	"github.com/munichmade/hostsync/internal/hosts"
	"github.com/munichmade/hostsync/internal/source"
)

const (
	// Name is the registry name of this source.
	Name = "route53"

	// DefaultRegion is used when no region is configured. Route 53 is global.
	DefaultRegion = "us-east-1"

	// DefaultRateLimit is the default number of API calls per second.
	// Route 53 allows five per account.
	DefaultRateLimit = 5
)

// ErrMissingCredentials is returned when required credentials are absent.
var ErrMissingCredentials = errors.New("missing credentials")

func init() {
	source.Register(Name, func(opts source.Options) (source.Source, error) {
		return New(opts)
	})
}

// Credentials authenticate against AWS.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
}

// CredentialsFromSettings reads credentials from source settings.
func CredentialsFromSettings(s source.Settings) Credentials {
	return Credentials{
		AccessKeyID:     s.String("access_key_id", ""),
		SecretAccessKey: s.String("secret_access_key", ""),
		SessionToken:    s.String("session_token", ""),
		Region:          s.String("region", DefaultRegion),
	}
}

// Validate reports every missing required field by its environment
// variable name.
func (c Credentials) Validate() error {
	var missing []string
	if c.AccessKeyID == "" {
		missing = append(missing, "AWS_ACCESS_KEY_ID")
	}
	if c.SecretAccessKey == "" {
		missing = append(missing, "AWS_SECRET_ACCESS_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// API is the subset of the Route 53 client used here.
type API interface {
	ListHostedZonesByName(ctx context.Context, params *route53.ListHostedZonesByNameInput, optFns ...func(*route53.Options)) (*route53.ListHostedZonesByNameOutput, error)
	ListResourceRecordSets(ctx context.Context, params *route53.ListResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ListResourceRecordSetsOutput, error)
}

// Source reads A and AAAA record sets of a hosted zone.
type Source struct {
	api     API
	types   map[types.RRType]bool
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Route 53 source from options. Credentials are validated
// before any client is built.
func New(opts source.Options) (*Source, error) {
	creds := CredentialsFromSettings(opts.Settings)
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(creds.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken,
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithAPI(route53.NewFromConfig(cfg), opts)
}

// NewWithAPI creates a source around an existing client.
func NewWithAPI(api API, opts source.Options) (*Source, error) {
	rrTypes := make(map[types.RRType]bool, len(opts.RecordTypes))
	for _, name := range opts.RecordTypes {
		t := types.RRType(strings.ToUpper(name))
		if t != types.RRTypeA && t != types.RRTypeAaaa {
			return nil, fmt.Errorf("unsupported record type %q", name)
		}
		rrTypes[t] = true
	}

	limit, err := opts.Settings.Float("rate_limit", DefaultRateLimit)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Source{
		api:     api,
		types:   rrTypes,
		limiter: rate.NewLimiter(rate.Limit(limit), 1),
		logger:  logger,
	}, nil
}

// Records implements source.Source.
func (s *Source) Records(ctx context.Context, zone string) (*hosts.Records, []string, error) {
	zoneID, err := s.hostedZoneID(ctx, zone)
	if err != nil {
		return nil, nil, err
	}

	records := hosts.NewRecords()
	var warnings []string

	input := &route53.ListResourceRecordSetsInput{HostedZoneId: aws.String(zoneID)}
	for page := 1; ; page++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}

		out, err := s.api.ListResourceRecordSets(ctx, input)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list record sets of %s: %w", zone, err)
		}
		s.logger.Debug("fetched record sets", "zone", zone, "page", page, "count", len(out.ResourceRecordSets))

		for _, rrset := range out.ResourceRecordSets {
			if !s.types[rrset.Type] {
				continue
			}
			name := aws.ToString(rrset.Name)
			if rrset.AliasTarget != nil {
				warnings = append(warnings, fmt.Sprintf("ignoring Route53 alias record %s %s -> %s",
					name, rrset.Type, aws.ToString(rrset.AliasTarget.DNSName)))
				continue
			}
			for _, rr := range rrset.ResourceRecords {
				records.Add(aws.ToString(rr.Value), name)
			}
		}

		if !out.IsTruncated {
			break
		}
		input.StartRecordName = out.NextRecordName
		input.StartRecordType = out.NextRecordType
		input.StartRecordIdentifier = out.NextRecordIdentifier
	}

	return records, warnings, nil
}

// hostedZoneID finds the hosted zone whose name is exactly zone.
func (s *Source) hostedZoneID(ctx context.Context, zone string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	fqdn := dns.Fqdn(zone)
	out, err := s.api.ListHostedZonesByName(ctx, &route53.ListHostedZonesByNameInput{
		DNSName:  aws.String(fqdn),
		MaxItems: aws.Int32(1),
	})
	if err != nil {
		return "", fmt.Errorf("failed to look up hosted zone %s: %w", zone, err)
	}

	for _, hz := range out.HostedZones {
		if strings.EqualFold(aws.ToString(hz.Name), fqdn) {
			return strings.TrimPrefix(aws.ToString(hz.Id), "/hostedzone/"), nil
		}
	}
	return "", fmt.Errorf("hosted zone %s not found", zone)
}
