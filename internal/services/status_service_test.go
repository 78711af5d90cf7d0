package services

import (
	"context"
	"testing"

	"github.com/dealdocs/engine/internal/auth"
	"github.com/dealdocs/engine/internal/models"
	appErr "github.com/dealdocs/engine/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func statusFixture() (*mockDealRepository, *mockDocumentRepository, *mockPackRepository, *models.Deal, auth.Principal) {
	deal := &models.Deal{ID: uuid.New(), DealershipID: uuid.New(), Status: models.DealStatusDocsReady}
	deals := &mockDealRepository{}
	deals.On("GetByID", mock.Anything, deal.ID).Return(deal, nil)
	return deals, &mockDocumentRepository{}, &mockPackRepository{}, deal,
		auth.Principal{RequesterID: uuid.New(), DealershipID: deal.DealershipID}
}

func TestStatusFromInstances(t *testing.T) {
	deals, docs, packs, deal, p := statusFixture()
	docs.On("ListByDeal", mock.Anything, deal.ID).Return([]models.DocumentInstance{
		{Status: models.DocumentStatusReady},
		{Status: models.DocumentStatusReady},
		{Status: models.DocumentStatusVoid},
	}, nil)

	st, err := NewStatusService(deals, docs, packs).GetStatus(context.Background(), p, deal.ID)
	require.NoError(t, err)
	require.Equal(t, &GenerationStatus{
		Total: 3, Ready: 2, Voided: 1, Signed: 0, Draft: 0,
		InProgress: false, AllReady: false, AllSigned: false,
		Source: StatusSourceInstances,
	}, st)
	packs.AssertNotCalled(t, "GetByDeal", mock.Anything, mock.Anything)
}

func TestStatusFallsBackToLegacyPack(t *testing.T) {
	deals, docs, packs, deal, p := statusFixture()
	docs.On("ListByDeal", mock.Anything, deal.ID).Return([]models.DocumentInstance{}, nil)
	packs.On("GetByDeal", mock.Anything, deal.ID).Return(&models.DocumentPack{
		DealID:    deal.ID,
		Documents: datatypes.JSON(`[{"name":"Bill of Sale","status":"generated"},{"name":"Buyers Guide","status":"signed"}]`),
	}, nil)

	st, err := NewStatusService(deals, docs, packs).GetStatus(context.Background(), p, deal.ID)
	require.NoError(t, err)
	require.Equal(t, 2, st.Total)
	require.Equal(t, 1, st.Ready)
	require.Equal(t, 1, st.Signed)
	require.Equal(t, StatusSourceLegacy, st.Source)
	require.False(t, st.AllReady)
}

func TestStatusWithoutDocuments(t *testing.T) {
	deals, docs, packs, deal, p := statusFixture()
	docs.On("ListByDeal", mock.Anything, deal.ID).Return(nil, nil)
	packs.On("GetByDeal", mock.Anything, deal.ID).Return(nil, nil)

	st, err := NewStatusService(deals, docs, packs).GetStatus(context.Background(), p, deal.ID)
	require.NoError(t, err)
	require.Equal(t, 0, st.Total)
	require.False(t, st.AllReady)
	require.False(t, st.AllSigned)
	require.False(t, st.InProgress)
}

func TestStatusForbidden(t *testing.T) {
	deals, docs, packs, deal, _ := statusFixture()
	_, err := NewStatusService(deals, docs, packs).GetStatus(context.Background(), auth.Principal{DealershipID: uuid.New()}, deal.ID)
	require.True(t, appErr.IsCode(err, appErr.CodeForbidden))
}

func TestLegacyStatus(t *testing.T) {
	cases := map[string]string{
		"generated": models.DocumentStatusReady,
		"Ready":     models.DocumentStatusReady,
		"pending":   models.DocumentStatusDraft,
		"draft":     models.DocumentStatusDraft,
		"signed":    models.DocumentStatusSigned,
		"completed": models.DocumentStatusSigned,
		"void":      models.DocumentStatusVoid,
		"voided":    models.DocumentStatusVoid,
		"archived":  models.DocumentStatusDraft,
	}
	for in, want := range cases {
		require.Equal(t, want, LegacyStatus(in), in)
	}
}

func TestAggregateFlags(t *testing.T) {
	st := Aggregate([]string{models.DocumentStatusReady, models.DocumentStatusDraft}, StatusSourceInstances)
	require.True(t, st.InProgress)
	require.False(t, st.AllReady)

	st = Aggregate([]string{models.DocumentStatusReady, models.DocumentStatusReady}, StatusSourceInstances)
	require.True(t, st.AllReady)
	require.False(t, st.InProgress)

	st = Aggregate([]string{models.DocumentStatusSigned}, StatusSourceInstances)
	require.True(t, st.AllSigned)
	require.False(t, st.AllReady)
}
