package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/elliotchance/pie/v2"

	"github.com/jason-s-yu/matchhost/internal/interaction"
)

// customIDSeparator joins the prompt id and the button value.
const customIDSeparator = "|"

const maxButtonsPerRow = 5

var buttonStyles = map[interaction.OptionStyle]discordgo.ButtonStyle{
	interaction.StylePrimary:   discordgo.PrimaryButton,
	interaction.StyleSecondary: discordgo.SecondaryButton,
	interaction.StyleSuccess:   discordgo.SuccessButton,
	interaction.StyleDanger:    discordgo.DangerButton,
}

func embed(st interaction.Status) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       st.Title,
		Description: st.Description,
		Color:       st.Color,
		Fields: pie.Map(st.Fields, func(f interaction.Field) *discordgo.MessageEmbedField {
			return &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline}
		}),
	}
	if st.Footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: st.Footer}
	}
	return e
}

// content carries the mentions so the platform notifies the users.
func content(st interaction.Status) string {
	return strings.Join(pie.Map(st.Mentions, interaction.Mention), " ")
}

func components(p *interaction.Prompt) []discordgo.MessageComponent {
	if p == nil || len(p.Options) == 0 {
		return []discordgo.MessageComponent{}
	}
	if p.Kind == interaction.PromptSelect {
		return []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    p.ID,
				Placeholder: p.Placeholder,
				Options: pie.Map(p.Options, func(o interaction.Option) discordgo.SelectMenuOption {
					return discordgo.SelectMenuOption{Label: o.Label, Value: o.Value}
				}),
			},
		}}}
	}

	var rows []discordgo.MessageComponent
	for start := 0; start < len(p.Options); start += maxButtonsPerRow {
		end := min(start+maxButtonsPerRow, len(p.Options))
		row := discordgo.ActionsRow{}
		for _, o := range p.Options[start:end] {
			style, ok := buttonStyles[o.Style]
			if !ok {
				style = discordgo.SecondaryButton
			}
			row.Components = append(row.Components, discordgo.Button{
				Label:    o.Label,
				Style:    style,
				CustomID: p.ID + customIDSeparator + o.Value,
				Disabled: o.Disabled,
			})
		}
		rows = append(rows, row)
	}
	return rows
}

// action turns a component interaction into a prompt action.
func action(i *discordgo.InteractionCreate) (interaction.Action, bool) {
	if i.Type != discordgo.InteractionMessageComponent {
		return interaction.Action{}, false
	}
	data := i.MessageComponentData()
	a := interaction.Action{UserID: interactionUser(i)}
	if a.UserID == "" {
		return interaction.Action{}, false
	}
	if len(data.Values) > 0 {
		a.PromptID, a.Value = data.CustomID, data.Values[0]
		return a, true
	}
	promptID, value, ok := strings.Cut(data.CustomID, customIDSeparator)
	if !ok {
		return interaction.Action{}, false
	}
	a.PromptID, a.Value = promptID, value
	return a, true
}

func interactionUser(i *discordgo.InteractionCreate) string {
	switch {
	case i.Member != nil && i.Member.User != nil:
		return i.Member.User.ID
	case i.User != nil:
		return i.User.ID
	}
	return ""
}

func memberName(m *discordgo.Member) string {
	if m == nil {
		return ""
	}
	if m.Nick != "" {
		return m.Nick
	}
	if m.User != nil {
		return m.User.Username
	}
	return ""
}
