package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeInvalidArgument                = "INVALID_ARGUMENT"
	CodeNotFound                       = "NOT_FOUND"
	CodeAlreadyExists                  = "ALREADY_EXISTS"
	CodeLevelNameEmpty                 = "LEVEL_NAME_EMPTY"
	CodeLevelInvalidDuration           = "LEVEL_INVALID_DURATION"
	CodeLevelInvalidPrice              = "LEVEL_INVALID_PRICE"
	CodeLevelInvalidAccessLevel        = "LEVEL_INVALID_ACCESS_LEVEL"
	CodeLevelInactive                  = "LEVEL_INACTIVE"
	CodeMemberUserIDEmpty              = "MEMBER_USER_ID_EMPTY"
	CodeMemberNoLevel                  = "MEMBER_NO_LEVEL"
	CodeMemberInvalidStatusTransition  = "MEMBER_INVALID_STATUS_TRANSITION"
	CodeMemberStatusDisallowsOperation = "MEMBER_STATUS_DISALLOWS_OPERATION"
	CodeRestrictionInvalidMode         = "RESTRICTION_INVALID_MODE"
	CodeRestrictionInvalidAccessLevel  = "RESTRICTION_INVALID_ACCESS_LEVEL"
	CodeRestrictionLevelsRequired      = "RESTRICTION_LEVELS_REQUIRED"
	CodeDiscountInvalidCode            = "DISCOUNT_INVALID_CODE"
	CodeDiscountInvalidAmount          = "DISCOUNT_INVALID_AMOUNT"
	CodeDiscountInvalidUnit            = "DISCOUNT_INVALID_UNIT"
	CodeDiscountInactive               = "DISCOUNT_INACTIVE"
	CodeDiscountExpired                = "DISCOUNT_EXPIRED"
	CodeDiscountMaxedOut               = "DISCOUNT_MAXED_OUT"
	CodeDiscountLevelMismatch          = "DISCOUNT_LEVEL_MISMATCH"
	CodeDiscountAlreadyUsed            = "DISCOUNT_ALREADY_USED"
	CodePaymentStatusInvalid           = "PAYMENT_STATUS_INVALID"
	CodeGrantInvalid                   = "GRANT_INVALID"
	CodeGrantExpired                   = "GRANT_EXPIRED"
	CodeGrantMismatch                  = "GRANT_MISMATCH"
	CodeGrantNotConfigured             = "GRANT_NOT_CONFIGURED"
)

var enUSCatalog = &Catalog{
	locale: "en-US",
	messages: map[Code]string{
		CodeInvalidArgument: "The request is invalid: {{.Reason}}",
		CodeNotFound:        "{{.Resource}} was not found",
		CodeAlreadyExists:   "{{.Resource}} already exists",

		// Subscription levels
		CodeLevelNameEmpty:          "Subscription level name cannot be empty",
		CodeLevelInvalidDuration:    "Subscription level duration is invalid",
		CodeLevelInvalidPrice:       "Subscription level price and fee cannot be negative",
		CodeLevelInvalidAccessLevel: "Access level must be between 0 and 10",
		CodeLevelInactive:           "Subscription level {{.LevelID}} is not available for signup",

		// Members
		CodeMemberUserIDEmpty:              "User ID is required",
		CodeMemberNoLevel:                  "Membership has no subscription level",
		CodeMemberInvalidStatusTransition:  "Cannot move membership from {{.FromStatus}} to {{.ToStatus}}",
		CodeMemberStatusDisallowsOperation: "Membership status {{.Status}} does not allow {{.Operation}}",

		// Restrictions
		CodeRestrictionInvalidMode:        "Unknown subscription level requirement",
		CodeRestrictionInvalidAccessLevel: "Required access level must be between 0 and 10",
		CodeRestrictionLevelsRequired:     "A level list requirement needs at least one level",

		// Discounts
		CodeDiscountInvalidCode:   "Discount code may only contain letters, numbers, dashes and underscores",
		CodeDiscountInvalidAmount: "Discount amount is invalid",
		CodeDiscountInvalidUnit:   "Discount unit must be percent or flat",
		CodeDiscountInactive:      "Discount code is not active",
		CodeDiscountExpired:       "Discount code has expired",
		CodeDiscountMaxedOut:      "Discount code has reached its maximum uses",
		CodeDiscountLevelMismatch: "Discount code cannot be used with this subscription level",
		CodeDiscountAlreadyUsed:   "You have already used this discount code",

		// Payments
		CodePaymentStatusInvalid: "Payment is already {{.Status}}",

		// Grants
		CodeGrantInvalid:       "Access grant is invalid",
		CodeGrantExpired:       "Access grant has expired",
		CodeGrantMismatch:      "Access grant does not match this content",
		CodeGrantNotConfigured: "Access grants are not configured",
	},
}

var ptBRCatalog = &Catalog{
	locale: "pt-BR",
	messages: map[Code]string{
		CodeInvalidArgument: "A requisição é inválida: {{.Reason}}",
		CodeNotFound:        "{{.Resource}} não foi encontrado",
		CodeAlreadyExists:   "{{.Resource}} já existe",

		CodeLevelNameEmpty:          "O nome do nível de assinatura não pode ser vazio",
		CodeLevelInvalidDuration:    "A duração do nível de assinatura é inválida",
		CodeLevelInvalidPrice:       "Preço e taxa do nível de assinatura não podem ser negativos",
		CodeLevelInvalidAccessLevel: "O nível de acesso deve estar entre 0 e 10",
		CodeLevelInactive:           "O nível de assinatura {{.LevelID}} não está disponível",

		CodeMemberUserIDEmpty:              "O ID do usuário é obrigatório",
		CodeMemberNoLevel:                  "A assinatura não possui nível",
		CodeMemberInvalidStatusTransition:  "Não é possível mudar a assinatura de {{.FromStatus}} para {{.ToStatus}}",
		CodeMemberStatusDisallowsOperation: "O status {{.Status}} não permite {{.Operation}}",

		CodeRestrictionInvalidMode:        "Requisito de nível de assinatura desconhecido",
		CodeRestrictionInvalidAccessLevel: "O nível de acesso exigido deve estar entre 0 e 10",
		CodeRestrictionLevelsRequired:     "Uma lista de níveis precisa de pelo menos um nível",

		CodeDiscountInvalidCode:   "O cupom só pode conter letras, números, hífens e sublinhados",
		CodeDiscountInvalidAmount: "O valor do desconto é inválido",
		CodeDiscountInvalidUnit:   "A unidade do desconto deve ser percent ou flat",
		CodeDiscountInactive:      "O cupom não está ativo",
		CodeDiscountExpired:       "O cupom expirou",
		CodeDiscountMaxedOut:      "O cupom atingiu o número máximo de usos",
		CodeDiscountLevelMismatch: "O cupom não vale para este nível de assinatura",
		CodeDiscountAlreadyUsed:   "Você já usou este cupom",

		CodePaymentStatusInvalid: "O pagamento já está {{.Status}}",

		CodeGrantInvalid:       "A permissão de acesso é inválida",
		CodeGrantExpired:       "A permissão de acesso expirou",
		CodeGrantMismatch:      "A permissão de acesso não corresponde a este conteúdo",
		CodeGrantNotConfigured: "Permissões de acesso não estão configuradas",
	},
}
