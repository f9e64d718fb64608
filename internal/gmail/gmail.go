// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package gmail reads order-candidate messages from a GMail mailbox.
// It implements the mail source the scan orchestrator consumes:
// search by query with a result cap, and fetch one message's full
// content flattened for parsing.
package gmail

import (
	"context"
	"encoding/base64"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/NickJuneau/mealmate-v2-web/internal/message"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	gmail_api "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

const (
	ReadonlyScope = gmail_api.GmailReadonlyScope

	// See https://developers.google.com/gmail/api/v1/reference/quota
	quotaUnitsMessagesGet     = 5
	quotaUnitsPerMessagesList = 1

	quotaUnitsPerSecond = 250
	rateLimitPerSecond  = quotaUnitsPerSecond * 0.8
	rateLimitBurst      = quotaUnitsPerSecond
)

var (
	ErrMessageNotFound = errors.New("gmail message not found")
)

// Service provides access to messages stored in Google's GMail
// system.
type Service struct {
	service *gmail_api.Service
	limiter *rate.Limiter
}

func New(client *http.Client) (*Service, error) {
	s, err := gmail_api.New(client)
	if err != nil {
		return nil, err
	}
	l := rate.NewLimiter(rateLimitPerSecond, rateLimitBurst)
	return &Service{service: s, limiter: l}, nil
}

// Search returns the ids of up to limit messages matching query,
// newest first per GMail's default ordering. Listed entries without an
// id are skipped with a warning.
func (s *Service) Search(ctx context.Context, query string, limit int64) ([]string, error) {
	msgs := gmail_api.NewUsersMessagesService(s.service)
	var ids []string
	pageToken := ""
	for {
		if err := s.limiter.WaitN(ctx, quotaUnitsPerMessagesList); err != nil {
			return nil, err
		}
		call := msgs.List("me").Context(ctx).Q(query).MaxResults(limit - int64(len(ids)))
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		page, err := call.Do()
		if err != nil {
			return nil, errors.Wrap(err, "unable to list messages")
		}
		for _, m := range page.Messages {
			if m == nil || m.Id == "" {
				log.Printf("Warning: listed message without an id; skipping")
				continue
			}
			ids = append(ids, m.Id)
		}
		log.Printf("listed page of Gmail messages; count %d; total so far %d", len(page.Messages), len(ids))
		if page.NextPageToken == "" || int64(len(ids)) >= limit {
			break
		}
		pageToken = page.NextPageToken
	}
	if int64(len(ids)) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Fetch retrieves one message's full content: headers, the
// server-assigned receipt time, every MIME part decoded and
// concatenated, and the snippet.
func (s *Service) Fetch(ctx context.Context, id string) (*message.Raw, error) {
	msg, err := s.getMessage(ctx, gmail_api.NewUsersMessagesService(s.service).Get("me", id).
		Context(ctx).Format("full"))
	if err != nil {
		return nil, errors.Wrapf(err, "getting message %v from gmail", id)
	}
	raw := &message.Raw{
		ID:      msg.Id,
		Snippet: msg.Snippet,
	}
	if msg.InternalDate > 0 {
		raw.ReceivedAt = time.UnixMilli(msg.InternalDate)
	}
	if msg.Payload != nil {
		raw.Subject = headerValue(msg.Payload.Headers, "Subject")
		raw.From = headerValue(msg.Payload.Headers, "From")
		raw.Body = flattenParts(msg.Payload)
	}
	return raw, nil
}

func (s *Service) getMessage(ctx context.Context, call *gmail_api.UsersMessagesGetCall) (*gmail_api.Message, error) {
	for {
		if err := s.limiter.WaitN(ctx, quotaUnitsMessagesGet); err != nil {
			return nil, err
		}
		msg, err := call.Do()
		if err == nil {
			return msg, nil
		}

		switch cause := errors.Cause(err).(type) {
		case *googleapi.Error:
			if cause.Code == http.StatusTooManyRequests {
				continue // retry under the limiter
			}
			if cause.Code == http.StatusNotFound {
				for _, item := range cause.Errors {
					if item.Reason == "notFound" {
						log.Printf("Warning: message not found...")
						err = ErrMessageNotFound
					}
				}
			}
		}
		return nil, err
	}
}

// headerValue returns the named header's value, matched
// case-insensitively.
func headerValue(headers []*gmail_api.MessagePartHeader, name string) string {
	for _, h := range headers {
		if h != nil && strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// flattenParts walks the MIME part tree depth first, children before
// the part's own body, and concatenates every decoded body in that
// order. Undecodable parts are dropped rather than failing the whole
// message.
func flattenParts(part *gmail_api.MessagePart) string {
	var b strings.Builder
	gatherParts(part, &b)
	return b.String()
}

func gatherParts(part *gmail_api.MessagePart, out *strings.Builder) {
	if part == nil {
		return
	}
	for _, p := range part.Parts {
		gatherParts(p, out)
	}
	if part.Body != nil && part.Body.Data != "" {
		data, err := decodeWebSafe(part.Body.Data)
		if err != nil {
			log.Printf("Warning: undecodable body part; skipping: %v", err)
			return
		}
		out.Write(data)
	}
}

// decodeWebSafe decodes GMail's URL-safe base64, which arrives both
// with and without padding.
func decodeWebSafe(data string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
}
