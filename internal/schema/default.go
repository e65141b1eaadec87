package schema

import "github.com/user/freightbot/internal/types"

// Default returns the freight intake schema.
func Default() *Schema {
	s, err := New(Schema{
		NameField: "name",
		HelpField: "cargo",
		Labels:    types.DefaultLabels(),
		Fields: []Field{
			{Key: "name", Label: "👤 Name", Prompt: "Enter your name:", Kind: KindFreeText},
			{Key: "phone", Label: "📞 Phone", Prompt: "📞 Your phone number:", Kind: KindPhone},
			{Key: "destination", Label: "🏙️ City", Prompt: "🏙️ Destination city (Russia):", Kind: KindFreeText},
			{Key: "cargo", Label: "📦 Cargo", Prompt: "📦 Cargo description:", Kind: KindFreeText},
			{Key: "website", Label: "🔗 Link", Prompt: "🔗 Link to the product website (or 'No'):", Kind: KindFreeText},
			{Key: "photo", Label: "🖼️ Photo", Prompt: "🖼️ Photo of the cargo (or 'Skip photo'):", Kind: KindPhotoOptional},
			{Key: "weight", Label: "⚖️ Weight", Prompt: "⚖️ Cargo weight (kg):", Kind: KindFreeText, Unit: "kg"},
			{Key: "volume", Label: "📏 Volume", Prompt: "📏 Cargo volume (m³):", Kind: KindFreeText, Unit: "m³"},
			{Key: "delivery", Label: "🚚 Delivery", Prompt: "🚚 Delivery method:", Kind: KindEnumChoice,
				Choices: []string{"✈️ Air", "🚢 Sea", "🚛 Road", "🔀 Combined", "❓ Not sure"}},
			{Key: "budget", Label: "💰 Budget", Prompt: "💰 Budget:", Kind: KindFreeText},
			{Key: "comment", Label: "💬 Comment", Prompt: "💬 Comments (or 'No'):", Kind: KindFreeText},
		},
	})
	if err != nil {
		panic("schema: invalid default schema: " + err.Error())
	}
	return s
}
