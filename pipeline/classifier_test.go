// SPDX-License-Identifier: GPL-3.0-or-later
package pipeline

import (
	"fmt"
	"testing"
	"time"

	"github.com/mailpix/mailpix/domain"
	"github.com/mailpix/mailpix/domain/mocks"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
)

func classifierPipeline() *Pipeline {
	return &Pipeline{
		configuration: &configuration{
			Sender:        "news@school.org",
			Subject:       "[Weekly Update]",
			TargetWeekday: time.Friday,
		},
		l: nullLogger(),
	}
}

func header(uid uint32, from, subject, date string) *domain.HeaderInfo {
	return &domain.HeaderInfo{
		Uid:       uid,
		From:      from,
		Subject:   subject,
		Date:      date,
		MessageId: fmt.Sprintf("<%d@school.org>", uid),
	}
}

func TestClassifyAcceptsMatchingMail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	session := mocks.NewMockMailSession(ctrl)
	session.EXPECT().
		FetchHeader(uint32(1)).
		Return(header(1, "News <news@school.org>", "[Weekly Update] Week 3", "Fri, 15 Dec 2023 18:46:00 +0000"), nil)

	result := classifierPipeline().classify(session, []uint32{1})

	assert.Equal(t, 1, result.Candidates)
	assert.Len(t, result.Accepted, 1)
	assert.Equal(t, 1, result.TargetDay)
	assert.Equal(t, uint32(1), result.Accepted[0].Uid)
	assert.True(t, result.Accepted[0].IsTargetDay)
	assert.NotEmpty(t, result.Accepted[0].MailIdHash)
}

func TestClassifyRejects(t *testing.T) {
	tests := []struct {
		name   string
		header *domain.HeaderInfo
	}{
		{"wrong sender", header(1, "Spam <other@example.com>", "[Weekly Update] Week 3", "Fri, 15 Dec 2023 18:46:00 +0000")},
		{"wrong subject", header(1, "News <news@school.org>", "Lunch menu", "Fri, 15 Dec 2023 18:46:00 +0000")},
		{"subject only similar", header(1, "News <news@school.org>", "Weekly Update", "Fri, 15 Dec 2023 18:46:00 +0000")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			session := mocks.NewMockMailSession(ctrl)
			session.EXPECT().FetchHeader(uint32(1)).Return(tc.header, nil)

			result := classifierPipeline().classify(session, []uint32{1})
			assert.Empty(t, result.Accepted)
			assert.Equal(t, 1, result.Candidates)
		})
	}
}

func TestClassifySenderMatchIsCaseInsensitive(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	session := mocks.NewMockMailSession(ctrl)
	session.EXPECT().
		FetchHeader(uint32(1)).
		Return(header(1, "News <News@School.ORG>", "[Weekly Update] Week 3", "Fri, 15 Dec 2023 18:46:00 +0000"), nil)

	result := classifierPipeline().classify(session, []uint32{1})
	assert.Len(t, result.Accepted, 1)
}

func TestClassifyDecodesEncodedHeaders(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	session := mocks.NewMockMailSession(ctrl)
	session.EXPECT().
		FetchHeader(uint32(1)).
		Return(header(1, "News <news@school.org>", "=?utf-8?q?=5BWeekly=20Update=5D=20Week=203?=", "Fri, 15 Dec 2023 18:46:00 +0000"), nil)

	result := classifierPipeline().classify(session, []uint32{1})

	assert.Len(t, result.Accepted, 1)
	assert.Equal(t, "[Weekly Update] Week 3", result.Accepted[0].Subject)
}

func TestClassifyContinuesAfterFetchFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	session := mocks.NewMockMailSession(ctrl)
	gomock.InOrder(
		session.EXPECT().
			FetchHeader(uint32(1)).
			Return(nil, fmt.Errorf("connection reset")),
		session.EXPECT().
			FetchHeader(uint32(2)).
			Return(header(2, "News <news@school.org>", "[Weekly Update] Week 3", "Thu, 14 Dec 2023 09:00:00 +0000"), nil),
	)

	result := classifierPipeline().classify(session, []uint32{1, 2})

	assert.Equal(t, 2, result.Candidates)
	assert.Len(t, result.Accepted, 1)
	assert.Equal(t, uint32(2), result.Accepted[0].Uid)
	// Thursday mail is still accepted, the day check is advisory only.
	assert.Equal(t, 0, result.TargetDay)
	assert.False(t, result.Accepted[0].IsTargetDay)
}

// Accepted uids are always a subset of the candidate uids, classification
// never invents ids.
func TestClassifyAcceptedIsSubsetOfCandidates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	candidates := []uint32{5, 6, 7, 8}
	session := mocks.NewMockMailSession(ctrl)
	session.EXPECT().FetchHeader(uint32(5)).Return(header(5, "News <news@school.org>", "[Weekly Update] A", "bad date"), nil)
	session.EXPECT().FetchHeader(uint32(6)).Return(header(6, "other@example.com", "[Weekly Update] B", ""), nil)
	session.EXPECT().FetchHeader(uint32(7)).Return(nil, fmt.Errorf("gone"))
	session.EXPECT().FetchHeader(uint32(8)).Return(header(8, "news@school.org", "[Weekly Update] C", ""), nil)

	result := classifierPipeline().classify(session, candidates)

	candidateSet := map[uint32]bool{}
	for _, uid := range candidates {
		candidateSet[uid] = true
	}
	for _, accepted := range result.Accepted {
		assert.True(t, candidateSet[accepted.Uid])
	}
	assert.Equal(t, []uint32{5, 8}, acceptedUids(result))
}

func acceptedUids(result *ClassifyResult) []uint32 {
	uids := []uint32{}
	for _, a := range result.Accepted {
		uids = append(uids, a.Uid)
	}
	return uids
}
