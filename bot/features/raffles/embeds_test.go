package raffles

import (
	"testing"
	"time"

	"raffler/domain/entities"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAnnouncementEmbed(t *testing.T) {
	endAt := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	t.Run("unrestricted raffle", func(t *testing.T) {
		embed := CreateAnnouncementEmbed("Nitro Giveaway", "", "", endAt, 1, 0, nil, "<@42>")

		assert.Contains(t, embed.Title, "Nitro Giveaway")
		assert.Contains(t, embed.Description, EntryEmoji)
		assert.Empty(t, embed.URL)

		fields := fieldMap(embed.Fields)
		assert.Equal(t, "1 winner", fields["Winners"])
		assert.Equal(t, "None", fields["Days on Server"])
		assert.Equal(t, "@everyone", fields["Allowed Roles"])
		assert.Equal(t, "<@42>", fields["Hosted by"])
	})

	t.Run("restricted raffle", func(t *testing.T) {
		embed := CreateAnnouncementEmbed("VIP Raffle", "For the regulars", "", endAt, 3, 30, []int64{11, 22}, "<@42>")

		assert.Contains(t, embed.Description, "For the regulars")

		fields := fieldMap(embed.Fields)
		assert.Equal(t, "3 winners", fields["Winners"])
		assert.Equal(t, "30 days", fields["Days on Server"])
		assert.Equal(t, "<@&11> <@&22>", fields["Allowed Roles"])
	})

	t.Run("link becomes the embed URL", func(t *testing.T) {
		embed := CreateAnnouncementEmbed("Key Giveaway", "", "https://example.com/game", endAt, 1, 0, nil, "<@42>")

		assert.Equal(t, "https://example.com/game", embed.URL)
	})
}

func TestOutcomeEmbeds(t *testing.T) {
	raffle, err := entities.NewRaffle(100, 200, 300, "Nitro Giveaway", "", time.Hour, 2, 0, nil, time.Now().UTC())
	require.NoError(t, err)

	t.Run("winners", func(t *testing.T) {
		embed := CreateWinnersEmbed(raffle, []string{"alice", "bob"})

		assert.Contains(t, embed.Title, "Nitro Giveaway")
		assert.Equal(t, 0x57F287, embed.Color)
		require.Len(t, embed.Fields, 1)
		assert.Equal(t, "Winners", embed.Fields[0].Name)
		assert.Contains(t, embed.Fields[0].Value, "alice")
		assert.Contains(t, embed.Fields[0].Value, "bob")
	})

	t.Run("single winner field label", func(t *testing.T) {
		embed := CreateWinnersEmbed(raffle, []string{"alice"})
		assert.Equal(t, "Winner", embed.Fields[0].Name)
	})

	t.Run("no valid entries", func(t *testing.T) {
		embed := CreateNoEntriesEmbed(raffle)
		assert.Contains(t, embed.Title, "Nitro Giveaway")
		assert.Equal(t, 0xFEE75C, embed.Color)
	})

	t.Run("announcement deleted", func(t *testing.T) {
		embed := CreateDrawFailureEmbed(raffle)
		assert.Contains(t, embed.Description, "deleted")
		assert.Equal(t, 0xED4245, embed.Color)
	})
}

func TestCreateActiveListEmbed(t *testing.T) {
	first, err := entities.NewRaffle(100, 200, 300, "First raffle", "", time.Hour, 1, 0, nil, time.Now().UTC())
	require.NoError(t, err)
	second, err := entities.NewRaffle(100, 200, 301, "Second raffle", "", 2*time.Hour, 1, 0, nil, time.Now().UTC())
	require.NoError(t, err)

	embed := CreateActiveListEmbed([]*entities.Raffle{first, second})

	assert.Contains(t, embed.Description, "`300`")
	assert.Contains(t, embed.Description, "First raffle")
	assert.Contains(t, embed.Description, "`301`")
	assert.Contains(t, embed.Description, "Second raffle")
}

func fieldMap(fields []*discordgo.MessageEmbedField) map[string]string {
	m := make(map[string]string, len(fields))
	for _, f := range fields {
		m[f.Name] = f.Value
	}
	return m
}
